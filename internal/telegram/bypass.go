package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// BypassParam is the query parameter carrying the obfuscated request URL
const BypassParam = "request"

var (
	// ErrNoBypassRequest means the bypass query had no request parameter
	ErrNoBypassRequest = errors.New("missing request parameter")
	// ErrHostNotAllowed means the bypass relay refused to forward to a host
	ErrHostNotAllowed = errors.New("host not allowed")
)

// Rot13 rotates ASCII letters by 13 places and leaves everything else alone.
// It is its own inverse.
func Rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

// WrapBypass rewrites a request URL so that it can be handed to a bypass relay
func WrapBypass(bypassURL, original string) string {
	return bypassURL + "?" + BypassParam + "=" + Rot13(url.QueryEscape(original))
}

// UnwrapBypass recovers the URL to fetch from a bypass relay's raw query string.
// The value is decoded, rotated back and decoded again; both decodes are lenient and
// keep malformed escapes such as the rotated "%3N" as written. The second decode is
// why message text is percent-encoded once more before wrapping.
func UnwrapBypass(rawQuery string) (string, error) {
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key != BypassParam {
			continue
		}
		if value == "" {
			break
		}
		return lenientUnescape(Rot13(lenientUnescape(value))), nil
	}
	return "", ErrNoBypassRequest
}

// lenientUnescape decodes '+' and valid %XX escapes and copies anything else through.
func lenientUnescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '+':
			out.WriteByte(' ')
		case s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			out.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// BypassRelay is the receiving end of the bypass indirection: it decodes the
// obfuscated URL and fetches it on the caller's behalf. Only allow-listed hosts are
// reachable so the relay cannot be used as an open proxy.
type BypassRelay struct {
	allowed    map[string]bool
	httpClient *http.Client
}

// RelayResponse is what the upstream returned
type RelayResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewBypassRelay creates a relay forwarding to the given hosts. With no hosts it
// forwards to the Bot API and the hosted relay only.
func NewBypassRelay(httpClient *http.Client, hosts ...string) *BypassRelay {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if len(hosts) == 0 {
		hosts = DefaultBypassHosts()
	}
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = true
	}
	return &BypassRelay{allowed: allowed, httpClient: httpClient}
}

// DefaultBypassHosts returns the hosts of the Bot API and the hosted relay
func DefaultBypassHosts() []string {
	var hosts []string
	for _, raw := range []string{DefaultBotAPIBase, DefaultRelayURL} {
		if u, err := url.Parse(raw); err == nil {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// Forward decodes rawQuery and performs the original request
func (b *BypassRelay) Forward(ctx context.Context, rawQuery string) (*RelayResponse, error) {
	original, err := UnwrapBypass(rawQuery)
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(original)
	if err != nil {
		return nil, fmt.Errorf("parsing request URL: %w", err)
	}
	if target.Scheme != "https" && target.Scheme != "http" {
		return nil, fmt.Errorf("%w: scheme %q", ErrHostNotAllowed, target.Scheme)
	}
	if !b.allowed[strings.ToLower(target.Host)] {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, target.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forwarding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}

	return &RelayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
