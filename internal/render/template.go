package render

import (
	"strings"

	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/sanitize"
)

// Placeholder tokens understood by channel templates
const (
	TokenTitle            = "{title}"
	TokenContent          = "{content}"
	TokenExcerpt          = "{excerpt}"
	TokenPostLink         = "{post_link}"
	TokenPostCategory     = "{post_category}"
	TokenPostType         = "{post_type}"
	TokenProductPrice     = "{product_price}"
	TokenProductSalePrice = "{product_sale_price}"
	TokenProductCategory  = "{product_category}"
)

// DefaultTemplate is used for both channel templates until the user changes them
const DefaultTemplate = `<b>{title}</b>

{content}

{excerpt}

{post_link}

{post_category}

#new_{post_type}`

// Replacement pairs a placeholder token with its value
type Replacement struct {
	Token string
	Value string
}

// Dictionary is an ordered list of replacements
type Dictionary []Replacement

func (d Dictionary) index(token string) int {
	for i := range d {
		if d[i].Token == token {
			return i
		}
	}
	return -1
}

func (d Dictionary) lookup(token string) (string, bool) {
	if i := d.index(token); i >= 0 {
		return d[i].Value, true
	}
	return "", false
}

func (d Dictionary) set(token, value string) {
	if i := d.index(token); i >= 0 {
		d[i].Value = value
	}
}

// Apply substitutes every token of the dictionary into template. Substitution is a
// single pass, so values are never themselves scanned for tokens. Tokens that are not
// in the dictionary are left as written.
func (d Dictionary) Apply(template string) string {
	if template == "" || len(d) == 0 {
		return template
	}
	pairs := make([]string, 0, len(d)*2)
	for _, r := range d {
		pairs = append(pairs, r.Token, r.Value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// BuildDictionary derives the placeholder values of a post. Every value is stripped of
// markup outside the Telegram allow-list. Commerce placeholders are empty unless the
// post is a product.
func BuildDictionary(post *event.Post) Dictionary {
	strip := sanitize.StripTelegram

	d := Dictionary{
		{TokenTitle, strip(post.Title)},
		{TokenContent, strip(post.Content)},
		{TokenExcerpt, strip(post.Excerpt)},
		{TokenPostLink, strip(post.Link)},
		{TokenPostCategory, strip(post.Category)},
		{TokenPostType, strip(post.Type)},
		{TokenProductPrice, ""},
		{TokenProductSalePrice, ""},
		{TokenProductCategory, ""},
	}

	if post.IsProduct() && post.Product != nil {
		d.set(TokenProductPrice, strip(post.Product.RegularPrice))
		d.set(TokenProductSalePrice, strip(post.Product.SalePrice))
		d.set(TokenProductCategory, strip(post.Product.Category))
	}

	return d
}

// Templates holds the two channel templates
type Templates struct {
	Post    string
	Product string
}

// For returns the template that applies to the post
func (t Templates) For(post *event.Post) string {
	if post.IsProduct() {
		return t.Product
	}
	return t.Post
}

// Renderer renders channel posts
type Renderer struct {
	templates Templates
}

// NewRenderer creates a renderer for the given templates
func NewRenderer(templates Templates) *Renderer {
	return &Renderer{templates: templates}
}

// Render returns the channel message for post. An empty template yields an empty
// message.
func (r *Renderer) Render(post *event.Post) string {
	if post == nil {
		return ""
	}
	template := r.templates.For(post)
	if template == "" {
		return ""
	}
	return BuildDictionary(post).Apply(template)
}
