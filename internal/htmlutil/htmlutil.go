// Package htmlutil wraps goquery with the small set of DOM operations the
// crawler and analyzers share: visible-text extraction, canonical link
// resolution, and metadata lookup.
package htmlutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parse builds a goquery document from raw HTML.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// VisibleText returns the rendered text of the document body with script,
// style, noscript, template and iframe subtrees removed and whitespace
// collapsed.
func VisibleText(doc *goquery.Document) string {
	sel := doc.Find("body").Clone()
	if sel.Length() == 0 {
		sel = doc.Selection.Clone()
	}
	sel.Find("script, style, noscript, template, iframe, svg").Remove()
	return CollapseWhitespace(sel.Text())
}

// CollapseWhitespace trims and collapses all whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Title returns the document title, trimmed.
func Title(doc *goquery.Document) string {
	return CollapseWhitespace(doc.Find("title").First().Text())
}

// CanonicalURL returns the href of <link rel="canonical">, or "".
func CanonicalURL(doc *goquery.Document) string {
	href, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	return strings.TrimSpace(href)
}

// MetaContent returns the content attribute of a named meta tag, checking both
// name= and property= forms.
func MetaContent(doc *goquery.Document, name string) string {
	if v, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[property="` + name + `"]`).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Anchor is a hyperlink with its visible anchor text.
type Anchor struct {
	Href string
	Text string
}

// Links returns every anchor in the document with a non-empty href.
func Links(doc *goquery.Document) []Anchor {
	var out []Anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		out = append(out, Anchor{Href: href, Text: CollapseWhitespace(s.Text())})
	})
	return out
}

// LinksIn returns anchors found inside the given selector only.
func LinksIn(doc *goquery.Document, selector string) []Anchor {
	var out []Anchor
	doc.Find(selector).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		out = append(out, Anchor{Href: href, Text: CollapseWhitespace(s.Text())})
	})
	return out
}
