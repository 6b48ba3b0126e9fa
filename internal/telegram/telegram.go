package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBotAPIBase is the Bot API prefix; the token and method are appended.
	DefaultBotAPIBase = "https://api.telegram.org/bot"
	// DefaultRelayURL is the hosted relay endpoint used when no bot token is configured.
	DefaultRelayURL = "https://telefication.ir/api/sendNotification"

	timeout         = 10 * time.Second
	maxResponseSize = 1 << 20
)

// Bot API and relay methods
const (
	MethodSendMessage      = "sendMessage"
	MethodSendPhoto        = "sendPhoto"
	MethodGetUpdates       = "getUpdates"
	MethodSendNotification = "sendNotification"
)

// Outcome messages reported on success
const (
	SentToBot   = "Test message sent successfully (To Your Bot)"
	SentToRelay = "Test message sent successfully (To Telefication Bot)"
)

var (
	// ErrNotApplicable means there is no destination to deliver to; the dispatch is skipped.
	ErrNotApplicable = errors.New("no destination configured")
	// ErrFailed is the generic delivery failure (transport error or unreadable response).
	ErrFailed = errors.New("an error occurred")
)

// RejectedError carries the remote service's own explanation of a failure
type RejectedError struct {
	Description string
}

func (e *RejectedError) Error() string {
	return e.Description
}

// Target identifies where and how messages are delivered
type Target struct {
	ChatID    string
	BotToken  string
	BypassURL string
}

// UsesBot reports whether messages go through the user's own bot
func (t Target) UsesBot() bool {
	return t.BotToken != ""
}

// UsesBypass reports whether requests are routed through a bypass relay
func (t Target) UsesBypass() bool {
	return t.BypassURL != ""
}

// Client delivers notifications for a single Target
type Client struct {
	target     Target
	botAPIBase string
	relayURL   string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBotAPIBase overrides the Bot API prefix (mainly for tests)
func WithBotAPIBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.botAPIBase = base
		}
	}
}

// WithRelayURL overrides the hosted relay endpoint
func WithRelayURL(relay string) Option {
	return func(c *Client) {
		if relay != "" {
			c.relayURL = relay
		}
	}
}

// NewClient creates a client for target
func NewClient(target Target, opts ...Option) *Client {
	c := &Client{
		target: Target{
			ChatID:    strings.TrimSpace(target.ChatID),
			BotToken:  strings.TrimSpace(target.BotToken),
			BypassURL: strings.TrimSpace(target.BypassURL),
		},
		botAPIBase: DefaultBotAPIBase,
		relayURL:   DefaultRelayURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Target returns the client's delivery target
func (c *Client) Target() Target {
	return c.target
}

// SendMessage prepares and sends a text message. recipient overrides the configured
// chat id when non-empty.
func (c *Client) SendMessage(ctx context.Context, message, recipient string) (string, error) {
	req, err := c.Prepare(message, recipient)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, req)
}

// SendPhoto prepares and sends a photo with caption. Only available with a bot token.
func (c *Client) SendPhoto(ctx context.Context, caption, photoURL, recipient string) (string, error) {
	req, err := c.PreparePhoto(caption, photoURL, recipient)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, req)
}

// Send performs the request and interprets the response
func (c *Client) Send(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", ErrNotApplicable
	}

	body, err := c.get(ctx, req.URL())
	if err != nil {
		return "", err
	}

	if req.ViaBot() {
		return interpretBotResponse(body)
	}
	return interpretRelayResponse(body)
}

// DiscoverChatID asks the bot for its most recent update and returns the id of the
// user who sent it. ErrNotApplicable is returned when there is no bot token or no one
// has written to the bot yet.
func (c *Client) DiscoverChatID(ctx context.Context) (string, error) {
	if !c.target.UsesBot() {
		return "", ErrNotApplicable
	}

	params := url.Values{}
	params.Set("offset", "-1")
	req := c.newRequest(MethodGetUpdates, c.botEndpoint(MethodGetUpdates), params, true)

	body, err := c.get(ctx, req.URL())
	if err != nil {
		return "", err
	}

	env, err := parseEnvelope(body)
	if err != nil {
		return "", err
	}
	if !env.OK {
		return "", env.failure()
	}

	id := env.Result.Get("0.message.from.id")
	if !id.Exists() || id.String() == "" {
		return "", ErrNotApplicable
	}
	return id.String(), nil
}

// get performs a GET and returns the body regardless of status code; the Bot API
// reports rejections with 4xx codes and a JSON description.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", ErrFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrFailed, err)
	}

	return body, nil
}
