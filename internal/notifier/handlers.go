package notifier

import (
	"context"
	"fmt"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/render"
	"github.com/pfrederiksen/telefication/internal/telegram"
)

// Handler names
const (
	HandlerMail    = "mail"
	HandlerComment = "comment"
	HandlerPost    = "post"
	HandlerChannel = "channel"
	HandlerUser    = "user"
	HandlerOrder   = "order"
)

// Build registers a handler for every notification enabled in cfg. cfg must not
// change while the registry is in use; callers pass a snapshot.
func Build(cfg *config.Config, sender Sender) *Registry {
	r := NewRegistry()
	h := &handlers{
		cfg:    cfg,
		sender: sender,
		site:   render.Site{Name: cfg.SiteName, URL: cfg.SiteURL},
		renderer: render.NewRenderer(render.Templates{
			Post:    cfg.ChannelNotificationTemplate,
			Product: cfg.ChannelWoocommerceTemplate,
		}),
	}

	if cfg.EmailNotification {
		r.Register(event.KindNewMail, HandlerMail, h.mail)
	}
	if cfg.WoocommerceEnable {
		r.Register(event.KindOrderStatusChanged, HandlerOrder, h.order)
	}
	if cfg.NewCommentNotification {
		r.Register(event.KindNewComment, HandlerComment, h.comment)
	}
	if cfg.NewPostNotification {
		r.Register(event.KindPostTransition, HandlerPost, h.post)
	}
	if cfg.SendToChannelEnable && cfg.BotToken != "" {
		r.Register(event.KindPostTransition, HandlerChannel, h.channel)
	}
	if cfg.NewUserNotification {
		r.Register(event.KindNewUser, HandlerUser, h.user)
	}
	return r
}

type handlers struct {
	cfg      *config.Config
	sender   Sender
	site     render.Site
	renderer *render.Renderer
}

func (h *handlers) mail(ctx context.Context, evt event.Event) (string, error) {
	m, ok := evt.(*event.NewMail)
	if !ok {
		return "", unexpected(evt)
	}
	if !h.cfg.MatchesEmail(m.To) {
		return "", fmt.Errorf("%w: recipient not in match list", ErrSkipped)
	}

	msg, err := render.FormatNewMail(h.site, m, render.MailOptions{
		DisplayRecipient: h.cfg.DisplayRecipientEmail,
		IncludeBody:      h.cfg.SendEmailBody,
	})
	if err != nil {
		return "", err
	}
	return h.sender.SendMessage(ctx, msg, "")
}

func (h *handlers) comment(ctx context.Context, evt event.Event) (string, error) {
	c, ok := evt.(*event.NewComment)
	if !ok {
		return "", unexpected(evt)
	}
	if c.IsSpam() {
		return "", fmt.Errorf("%w: spam comment", ErrSkipped)
	}
	return h.sender.SendMessage(ctx, render.FormatNewComment(h.site, c), "")
}

func (h *handlers) post(ctx context.Context, evt event.Event) (string, error) {
	t, ok := evt.(*event.PostTransition)
	if !ok {
		return "", unexpected(evt)
	}
	if !t.IsFirstPublish() || t.Post.Type != event.PostTypePost {
		return "", fmt.Errorf("%w: not a newly published post", ErrSkipped)
	}
	return h.sender.SendMessage(ctx, render.FormatNewPost(h.site, &t.Post), "")
}

func (h *handlers) channel(ctx context.Context, evt event.Event) (string, error) {
	t, ok := evt.(*event.PostTransition)
	if !ok {
		return "", unexpected(evt)
	}
	if !t.IsFirstPublish() {
		return "", fmt.Errorf("%w: not a newly published post", ErrSkipped)
	}
	if h.cfg.ChannelUsername == "" {
		return "", fmt.Errorf("%w: no channel username", ErrSkipped)
	}
	if !h.cfg.ChannelAllows(t.Post.Type) {
		return "", fmt.Errorf("%w: post type %q not sent to channel", ErrSkipped, t.Post.Type)
	}

	msg := h.renderer.Render(&t.Post)
	if msg == "" {
		return "", fmt.Errorf("%w: empty channel template", ErrSkipped)
	}

	if h.cfg.ChannelFeaturedImageEnable && t.Post.ThumbnailURL != "" {
		return h.sender.SendPhoto(ctx, msg, t.Post.ThumbnailURL, h.cfg.ChannelUsername)
	}
	return h.sender.SendMessage(ctx, msg, h.cfg.ChannelUsername)
}

func (h *handlers) user(ctx context.Context, evt event.Event) (string, error) {
	u, ok := evt.(*event.NewUser)
	if !ok {
		return "", unexpected(evt)
	}
	return h.sender.SendMessage(ctx, render.FormatNewUser(h.site, u), "")
}

func (h *handlers) order(ctx context.Context, evt event.Event) (string, error) {
	o, ok := evt.(*event.OrderStatusChanged)
	if !ok {
		return "", unexpected(evt)
	}
	if !h.cfg.NotifiesOrderStatus(o.To) {
		return "", fmt.Errorf("%w: order status %q not enabled", ErrSkipped, o.To)
	}

	msg := render.FormatOrder(h.site, o, render.OrderOptions{
		Items:    h.cfg.IncludeItemsDetail,
		Shipping: h.cfg.IncludeShippingInfo,
		Billing:  h.cfg.IncludeBillingInfo,
	})
	return h.sender.SendMessage(ctx, msg, "")
}

func unexpected(evt event.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", evt, evt.Kind())
}

// NewSender returns a Telegram client for the target described by cfg
func NewSender(cfg *config.Config, opts ...telegram.Option) *telegram.Client {
	opts = append([]telegram.Option{telegram.WithRelayURL(cfg.RelayURL)}, opts...)
	return telegram.NewClient(telegram.Target{
		ChatID:    cfg.ChatID,
		BotToken:  cfg.BotToken,
		BypassURL: cfg.BotBypass,
	}, opts...)
}

// Factory builds a registry from a fresh settings snapshot for every event, so
// settings changes apply to the next event without a restart.
type Factory struct {
	Source config.Source
	// NewSender creates the sender for a snapshot; nil means a Telegram client
	NewSender func(*config.Config) Sender
}

// Dispatch loads a snapshot, builds a registry and dispatches evt
func (f *Factory) Dispatch(ctx context.Context, evt event.Event) ([]Result, error) {
	cfg, err := f.Source.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var sender Sender
	if f.NewSender != nil {
		sender = f.NewSender(cfg)
	} else {
		sender = NewSender(cfg)
	}
	return Build(cfg, sender).Dispatch(ctx, evt)
}
