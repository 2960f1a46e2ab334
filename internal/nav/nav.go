// Package nav extracts and classifies navigation links from page HTML.
package nav

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/merchantsafe/kyc-screener/internal/htmlutil"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

// menuContainerSelectors match class/id containers that commonly hold menus.
var menuContainerSelectors = []string{
	`[class*="menu"]`,
	`[class*="nav"]`,
	`[id*="menu"]`,
	`[id*="nav"]`,
}

const maxMenuContainers = 5

// Candidate is one discovered internal link with its classification.
type Candidate struct {
	URL        string
	Anchor     string
	Type       pagegraph.PageType
	Confidence float64
	Primary    bool
}

// DiscoverPrimary extracts links from structural navigation regions: <nav>,
// <header>, <footer>, then menu-like class/id containers.
func DiscoverPrimary(doc *goquery.Document, baseURL string) []Candidate {
	var anchors []htmlutil.Anchor
	for _, sel := range []string{"nav", "header", "footer"} {
		anchors = append(anchors, htmlutil.LinksIn(doc, sel)...)
	}

	containers := 0
	for _, sel := range menuContainerSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if containers >= maxMenuContainers {
				return false
			}
			containers++
			s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				anchors = append(anchors, htmlutil.Anchor{
					Href: href,
					Text: htmlutil.CollapseWhitespace(a.Text()),
				})
			})
			return true
		})
	}

	return classify(anchors, baseURL, true)
}

// DiscoverSecondary extracts links from the page body, preferring <main>.
// Used when the sitemap and primary navigation yield too few candidates.
func DiscoverSecondary(doc *goquery.Document, baseURL string) []Candidate {
	anchors := htmlutil.LinksIn(doc, "main")
	if len(anchors) == 0 {
		anchors = htmlutil.Links(doc)
	}
	return classify(anchors, baseURL, false)
}

// classify resolves, filters, and classifies anchors, deduplicating by
// normalized URL with the highest-confidence classification winning.
func classify(anchors []htmlutil.Anchor, baseURL string, primary bool) []Candidate {
	best := make(map[string]Candidate)
	var order []string

	for _, a := range anchors {
		abs := urlutil.Resolve(baseURL, a.Href)
		if abs == "" || !urlutil.IsInternal(abs, baseURL) {
			continue
		}
		norm := urlutil.Normalize(abs)
		cls := urlutil.Classify(norm, a.Text, "")
		if cls.Type == pagegraph.PageSkip {
			continue
		}

		if existing, ok := best[norm]; ok {
			if cls.Confidence > existing.Confidence {
				existing.Type = cls.Type
				existing.Confidence = cls.Confidence
				existing.Anchor = a.Text
				best[norm] = existing
			}
			continue
		}
		best[norm] = Candidate{
			URL:        norm,
			Anchor:     a.Text,
			Type:       cls.Type,
			Confidence: cls.Confidence,
			Primary:    primary,
		}
		order = append(order, norm)
	}

	out := make([]Candidate, 0, len(order))
	for _, u := range order {
		out = append(out, best[u])
	}
	return out
}
