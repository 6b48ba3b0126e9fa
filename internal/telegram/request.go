package telegram

import (
	"net/url"
	"strings"
)

// Request is a fully prepared delivery. It is not modified after construction.
type Request struct {
	method   string
	endpoint string
	params   url.Values
	original string
	url      string
	viaBot   bool
}

// Method returns the Bot API or relay method name
func (r *Request) Method() string { return r.method }

// Endpoint returns the URL the request targets, without query string
func (r *Request) Endpoint() string { return r.endpoint }

// Param returns a single query parameter as it will be sent
func (r *Request) Param(key string) string { return r.params.Get(key) }

// Query returns the encoded query string
func (r *Request) Query() string { return r.params.Encode() }

// OriginalURL returns the request URL before any bypass rewriting
func (r *Request) OriginalURL() string { return r.original }

// URL returns the URL that is actually fetched
func (r *Request) URL() string { return r.url }

// ViaBot reports whether the response is a Bot API JSON envelope
func (r *Request) ViaBot() bool { return r.viaBot }

// Prepare builds a text message delivery. recipient overrides the configured chat id.
// ErrNotApplicable is returned when neither is set.
func (c *Client) Prepare(message, recipient string) (*Request, error) {
	chatID := c.resolveRecipient(recipient)
	if chatID == "" {
		return nil, ErrNotApplicable
	}

	params := url.Values{}
	params.Set("chat_id", chatID)

	if c.target.UsesBot() {
		params.Set("parse_mode", "html")
		params.Set("text", c.encodeText(message))
		return c.newRequest(MethodSendMessage, c.botEndpoint(MethodSendMessage), params, true), nil
	}

	params.Set("message", c.encodeText(message))
	return c.newRequest(MethodSendNotification, c.relayURL, params, false), nil
}

// PreparePhoto builds a photo delivery with caption. The relay cannot deliver photos,
// so ErrNotApplicable is returned without a bot token.
func (c *Client) PreparePhoto(caption, photoURL, recipient string) (*Request, error) {
	chatID := c.resolveRecipient(recipient)
	if chatID == "" || !c.target.UsesBot() {
		return nil, ErrNotApplicable
	}

	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("photo", photoURL)
	params.Set("caption", c.encodeText(caption))
	params.Set("parse_mode", "html")

	return c.newRequest(MethodSendPhoto, c.botEndpoint(MethodSendPhoto), params, true), nil
}

func (c *Client) resolveRecipient(recipient string) string {
	if r := strings.TrimSpace(recipient); r != "" {
		return r
	}
	return c.target.ChatID
}

// encodeText percent-encodes message text when a bypass relay is in use; the relay
// decodes the request URL once before forwarding it.
func (c *Client) encodeText(text string) string {
	if c.target.UsesBypass() {
		return url.QueryEscape(text)
	}
	return text
}

func (c *Client) botEndpoint(method string) string {
	return c.botAPIBase + c.target.BotToken + "/" + method
}

func (c *Client) newRequest(method, endpoint string, params url.Values, viaBot bool) *Request {
	original := endpoint + "?" + params.Encode()
	final := original
	if c.target.UsesBypass() {
		final = WrapBypass(c.target.BypassURL, original)
	}
	return &Request{
		method:   method,
		endpoint: endpoint,
		params:   params,
		original: original,
		url:      final,
		viaBot:   viaBot,
	}
}
