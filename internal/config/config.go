package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pfrederiksen/telefication/internal/render"
)

// Order statuses that can trigger a notification
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderOnHold     = "on-hold"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
	OrderFailed     = "failed"
)

// OrderStatuses lists every recognised order status
var OrderStatuses = []string{
	OrderPending,
	OrderProcessing,
	OrderOnHold,
	OrderCompleted,
	OrderCancelled,
	OrderRefunded,
	OrderFailed,
}

const (
	DefaultListenAddr = "127.0.0.1:8380"
	DefaultDataDir    = "~/.local/share/telefication"
	DefaultRelayURL   = "https://telefication.ir/api/sendNotification"
)

// DataDirEnv overrides DefaultDataDir. The directory holds the settings store, so it
// cannot itself be a stored option.
const DataDirEnv = EnvPrefix + "DATA_DIR"

// Config is the full settings record. JSON keys match the option names used by the
// settings page, so records can be moved between the file and the settings store.
type Config struct {
	ChatID    string `json:"chat_id"`
	BotToken  string `json:"bot_token"`
	BotBypass string `json:"bot_bypass" validate:"omitempty,http_url"`
	RelayURL  string `json:"relay_url" validate:"omitempty,http_url"`

	EmailNotification     bool     `json:"email_notification"`
	SendEmailBody         bool     `json:"send_email_body"`
	DisplayRecipientEmail bool     `json:"display_recipient_email"`
	MatchEmails           []string `json:"match_emails" validate:"dive,email"`

	NewCommentNotification bool `json:"new_comment_notification"`
	NewPostNotification    bool `json:"new_post_notification"`
	NewUserNotification    bool `json:"new_user_notification"`

	WoocommerceEnable   bool            `json:"woocommerce_enable"`
	OrderStatuses       map[string]bool `json:"order_statuses" validate:"dive,keys,oneof=pending processing on-hold completed cancelled refunded failed,endkeys"`
	IncludeItemsDetail  bool            `json:"include_items_detail"`
	IncludeShippingInfo bool            `json:"include_shipping_info"`
	IncludeBillingInfo  bool            `json:"include_billing_info"`

	SendToChannelEnable         bool     `json:"send_to_channel_enable"`
	ChannelUsername             string   `json:"channel_username"`
	ChannelNotificationTemplate string   `json:"channel_notification_template"`
	ChannelWoocommerceTemplate  string   `json:"channel_woocommerce_template"`
	ChannelFeaturedImageEnable  bool     `json:"channel_featured_image_enable"`
	ChannelPostTypes            []string `json:"channel_post_types" validate:"dive,required"`

	SiteName string `json:"site_name"`
	SiteURL  string `json:"site_url" validate:"omitempty,url"`

	// APIKey guards the admin and event endpoints; empty leaves them open
	APIKey     string `json:"api_key"`
	ListenAddr string `json:"listen_addr" validate:"omitempty,hostname_port"`
	// RateLimit and RateBurst size the limiter when the server starts; changing them
	// takes a restart.
	RateLimit float64 `json:"rate_limit" validate:"gte=0"`
	RateBurst int     `json:"rate_burst" validate:"gte=0"`
	LogLevel  string  `json:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a config with every option at its default
func Default() *Config {
	statuses := make(map[string]bool, len(OrderStatuses))
	for _, s := range OrderStatuses {
		statuses[s] = false
	}

	return &Config{
		RelayURL:                    DefaultRelayURL,
		OrderStatuses:               statuses,
		ChannelNotificationTemplate: render.DefaultTemplate,
		ChannelWoocommerceTemplate:  render.DefaultTemplate,
		ChannelPostTypes:            []string{"post"},
		ListenAddr:                  DefaultListenAddr,
		RateLimit:                   1,
		RateBurst:                   5,
		LogLevel:                    "info",
	}
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.MatchEmails = slices.Clone(c.MatchEmails)
	cp.ChannelPostTypes = slices.Clone(c.ChannelPostTypes)
	cp.OrderStatuses = maps.Clone(c.OrderStatuses)
	return &cp
}

// Sanitize normalises user input in place: identifiers are trimmed, invalid
// addresses are dropped from MatchEmails, and post types and order statuses are
// lowercased.
func (c *Config) Sanitize() {
	c.ChatID = strings.TrimSpace(c.ChatID)
	c.BotToken = strings.TrimSpace(c.BotToken)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BotBypass = strings.TrimSpace(c.BotBypass)
	c.RelayURL = strings.TrimSpace(c.RelayURL)
	c.ChannelUsername = strings.TrimSpace(c.ChannelUsername)

	var emails []string
	for _, entry := range c.MatchEmails {
		for _, e := range strings.Split(entry, ",") {
			e = strings.TrimSpace(e)
			if e != "" && validate.Var(e, "email") == nil && !slices.Contains(emails, e) {
				emails = append(emails, e)
			}
		}
	}
	c.MatchEmails = emails

	var types []string
	for _, t := range c.ChannelPostTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	c.ChannelPostTypes = types

	if c.OrderStatuses != nil {
		statuses := make(map[string]bool, len(c.OrderStatuses))
		for k, v := range c.OrderStatuses {
			k = NormalizeOrderStatus(k)
			statuses[k] = statuses[k] || v
		}
		c.OrderStatuses = statuses
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate checks option values. It does not modify c.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NormalizeOrderStatus lowercases a status, strips the "wc-" prefix commerce
// platforms store and maps the American spelling of cancelled.
func NormalizeOrderStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.TrimPrefix(s, "wc-")
	if s == "canceled" {
		s = OrderCancelled
	}
	return s
}

// NotifiesOrderStatus reports whether a change into status should be notified
func (c *Config) NotifiesOrderStatus(status string) bool {
	return c.OrderStatuses[NormalizeOrderStatus(status)]
}

// MatchesEmail reports whether mail to recipient passes the MatchEmails filter.
// An empty filter matches every recipient.
func (c *Config) MatchesEmail(recipient string) bool {
	if len(c.MatchEmails) == 0 {
		return true
	}
	return slices.Contains(c.MatchEmails, strings.TrimSpace(recipient))
}

// ChannelAllows reports whether posts of postType are forwarded to the channel
func (c *Config) ChannelAllows(postType string) bool {
	return slices.Contains(c.ChannelPostTypes, strings.ToLower(postType))
}

// ChannelReady reports whether channel posting is enabled and usable
func (c *Config) ChannelReady() bool {
	return c.SendToChannelEnable && c.BotToken != "" && c.ChannelUsername != ""
}

// Redacted returns a copy safe to display, with the bot token and API key masked
func (c *Config) Redacted() *Config {
	cp := c.Clone()
	cp.BotToken = MaskSecret(cp.BotToken)
	cp.APIKey = MaskSecret(cp.APIKey)
	return cp
}

// MaskSecret keeps the last four characters of s
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
