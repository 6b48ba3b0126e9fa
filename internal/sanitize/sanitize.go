package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// TelegramTags are the inline formatting tags Telegram accepts in HTML parse mode.
var TelegramTags = []string{"b", "i", "a", "code", "pre", "u", "ins", "s", "strike", "del"}

// StripTags removes all tags from s except the allowed ones. Text content of removed
// tags is kept. Allowed tags are copied verbatim, attributes included. Comments and
// doctypes are dropped.
func StripTags(s string, allowed []string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	allow := make(map[string]bool, len(allowed))
	for _, tag := range allowed {
		allow[strings.ToLower(tag)] = true
	}

	var out strings.Builder
	out.Grow(len(s))

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out.String()
		case html.TextToken:
			out.Write(z.Raw())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// TagName lower-cases the underlying buffer, so copy the raw bytes first.
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			if allow[string(name)] {
				out.Write(raw)
			}
		}
	}
}

// StripTelegram is StripTags with the Telegram allow-list.
func StripTelegram(s string) string {
	return StripTags(s, TelegramTags)
}
