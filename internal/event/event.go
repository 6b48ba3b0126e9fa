package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies a type of site event
type Kind string

const (
	KindNewMail            Kind = "new_mail"
	KindNewComment         Kind = "new_comment"
	KindPostTransition     Kind = "post_transition"
	KindNewUser            Kind = "new_user"
	KindOrderStatusChanged Kind = "order_status_changed"
)

// Kinds lists every known event kind in a stable order
var Kinds = []Kind{
	KindNewMail,
	KindNewComment,
	KindPostTransition,
	KindNewUser,
	KindOrderStatusChanged,
}

// ParseKind converts a string (e.g. from a URL path) into a Kind.
// Dashes are accepted in place of underscores.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %q", s)
}

// Event is implemented by every event payload
type Event interface {
	Kind() Kind
}

// CommentSpam is the status of comments flagged as spam
const CommentSpam = "spam"

// Post statuses and types
const (
	StatusPublish   = "publish"
	PostTypePost    = "post"
	PostTypeProduct = "product"
)

// NewMail is raised when the site sends an e-mail
type NewMail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// NewComment is raised when a comment is inserted
type NewComment struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// IsSpam reports whether the comment was flagged as spam
func (c *NewComment) IsSpam() bool {
	return strings.EqualFold(c.Status, CommentSpam)
}

// Product carries the commerce fields of a product post
type Product struct {
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
	Category     string `json:"category"`
}

// Post is a published piece of content
type Post struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Excerpt      string   `json:"excerpt"`
	Link         string   `json:"link"`
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Product      *Product `json:"product,omitempty"`
}

// IsProduct reports whether the post is a commerce product
func (p *Post) IsProduct() bool {
	return p.Type == PostTypeProduct
}

// PostTransition is raised when a post changes status
type PostTransition struct {
	NewStatus string `json:"new_status"`
	OldStatus string `json:"old_status"`
	Post      Post   `json:"post"`
}

// IsFirstPublish reports whether the post has just been published
func (t *PostTransition) IsFirstPublish() bool {
	return t.NewStatus == StatusPublish && t.OldStatus != StatusPublish
}

// NewUser is raised when a user registers
type NewUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login,omitempty"`
}

// Address is a postal/contact address attached to an order
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	State     string `json:"state"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
}

// OrderItem is a single line of an order
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is the commerce order attached to a status change
type Order struct {
	Total    decimal.Decimal `json:"total"`
	Items    []OrderItem     `json:"items"`
	Shipping Address         `json:"shipping"`
	Billing  Address         `json:"billing"`
}

// OrderStatusChanged is raised when an order moves between statuses
type OrderStatusChanged struct {
	OrderID int64  `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Order   Order  `json:"order"`
}

func (*NewMail) Kind() Kind            { return KindNewMail }
func (*NewComment) Kind() Kind         { return KindNewComment }
func (*PostTransition) Kind() Kind     { return KindPostTransition }
func (*NewUser) Kind() Kind            { return KindNewUser }
func (*OrderStatusChanged) Kind() Kind { return KindOrderStatusChanged }

// New returns an empty payload for the given kind
func New(kind Kind) (Event, error) {
	switch kind {
	case KindNewMail:
		return &NewMail{}, nil
	case KindNewComment:
		return &NewComment{}, nil
	case KindPostTransition:
		return &PostTransition{}, nil
	case KindNewUser:
		return &NewUser{}, nil
	case KindOrderStatusChanged:
		return &OrderStatusChanged{}, nil
	default:
		return nil, fmt.Errorf("unknown event kind: %q", kind)
	}
}

// Decode parses a JSON payload of the given kind
func Decode(kind Kind, data []byte) (Event, error) {
	evt, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return evt, nil
}

// Envelope is the self-describing form used by files and the CLI
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses {"kind": ..., "payload": {...}}
func DecodeEnvelope(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	kind, err := ParseKind(string(env.Kind))
	if err != nil {
		return nil, err
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("envelope for %s has no payload", kind)
	}
	return Decode(kind, env.Payload)
}
