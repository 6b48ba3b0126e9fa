package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)
	blockElements = "p, div, h1, h2, h3, h4, h5, h6, table, tr, ul, ol, blockquote, section, article, header, footer, hr"
)

// ToText converts an HTML document or fragment into plain text. Block elements are
// separated by blank lines, <br> becomes a newline, list items are prefixed with "- "
// and links are rendered as "text [href]".
func ToText(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("head, script, style, noscript").Remove()

	// Collapse source whitespace before inserting our own line breaks.
	collapseText(doc.Selection)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		switch {
		case href == "" || strings.HasPrefix(href, "#"):
			sel.ReplaceWithHtml(html.EscapeString(text))
		case text == "" || text == href:
			sel.ReplaceWithHtml(html.EscapeString(href))
		default:
			sel.ReplaceWithHtml(html.EscapeString(fmt.Sprintf("%s [%s]", text, href)))
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("- ")
		sel.AppendHtml("\n")
	})
	doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.BeforeHtml("\n\n")
		sel.AfterHtml("\n\n")
	})
	doc.Find("td, th").AfterHtml(" ")

	return tidyLines(doc.Text()), nil
}

func collapseText(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		switch node.Type {
		case html.TextNode:
			node.Data = whitespaceRun.ReplaceAllString(node.Data, " ")
		case html.ElementNode:
			if node.Data != "pre" {
				collapseText(child)
			}
		}
	})
}

// tidyLines trims every line and squeezes runs of blank lines down to one.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
