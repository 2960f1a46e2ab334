// Package sitemap discovers crawl candidates from sitemap.xml files.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

const (
	childFetchTimeout = 5 * time.Second
	maxRobotsSitemaps = 3 // sitemaps taken from robots.txt
	maxIndexChildren  = 3 // children expanded per sitemap index
	maxURLsPerSitemap = 100
)

// standardPaths are probed when robots.txt declares no sitemap.
var standardPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap/sitemap.xml",
	"/sitemaps/sitemap.xml",
}

// Service fetches and parses sitemaps for one screening crawl.
type Service struct {
	logger    *slog.Logger
	client    *http.Client
	userAgent string
}

// NewService creates a sitemap service sharing the crawler's HTTP client.
func NewService(client *http.Client, userAgent string, logger *slog.Logger) *Service {
	return &Service{
		logger:    logger.With("component", "sitemap"),
		client:    client,
		userAgent: userAgent,
	}
}

// Candidate is one sitemap URL with its classified page type.
type Candidate struct {
	URL        string
	Type       pagegraph.PageType
	Confidence float64
}

// sitemapDoc represents a parsed sitemap.xml file.
type sitemapDoc struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex represents a sitemap index file.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover locates a sitemap and returns internal, non-skip candidates sorted
// by page-type priority. Discovery order: robots-declared sitemaps, standard
// paths, then a <link rel="sitemap"> in the homepage HTML. The found return
// reports whether any sitemap document was parsed.
func (s *Service) Discover(ctx context.Context, baseURL string, robotsSitemaps []string, homepageHTML string) (candidates []Candidate, found bool) {
	var sources []string
	for i, u := range robotsSitemaps {
		if i >= maxRobotsSitemaps {
			break
		}
		sources = append(sources, u)
	}
	scheme := "https"
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	base := scheme + "://" + urlutil.Host(baseURL)
	for _, p := range standardPaths {
		sources = append(sources, base+p)
	}
	if link := sitemapLinkFromHTML(homepageHTML, baseURL); link != "" {
		sources = append(sources, link)
	}

	seen := make(map[string]bool)
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true

		urls, err := s.fetch(ctx, src, true)
		if err != nil {
			s.logger.Debug("sitemap fetch failed", "url", src, "error", err)
			continue
		}
		if len(urls) == 0 {
			continue
		}
		s.logger.Debug("sitemap parsed", "url", src, "url_count", len(urls))
		return s.filter(urls, baseURL), true
	}
	return nil, false
}

// fetch retrieves one sitemap document. Index files are expanded one level
// deep, first children only.
func (s *Service) fetch(ctx context.Context, sitemapURL string, expandIndex bool) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, childFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap body: %w", err)
	}

	// Try parsing as a sitemap index first.
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		if !expandIndex {
			return nil, nil
		}
		var all []string
		for i, entry := range index.Sitemaps {
			if i >= maxIndexChildren || len(all) >= maxURLsPerSitemap {
				break
			}
			urls, err := s.fetch(ctx, entry.Loc, false)
			if err != nil {
				s.logger.Debug("nested sitemap fetch failed", "url", entry.Loc, "error", err)
				continue
			}
			all = append(all, urls...)
		}
		return all, nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap XML: %w", err)
	}

	out := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

// filter keeps internal non-skip URLs, classifies each, and sorts by
// page-type priority, capped at maxURLsPerSitemap.
func (s *Service) filter(urls []string, baseURL string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, raw := range urls {
		norm := urlutil.Normalize(raw)
		if seen[norm] || !urlutil.IsInternal(norm, baseURL) {
			continue
		}
		cls := urlutil.Classify(norm, "", "")
		if cls.Type == pagegraph.PageSkip {
			continue
		}
		seen[norm] = true
		out = append(out, Candidate{URL: norm, Type: cls.Type, Confidence: cls.Confidence})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return pagegraph.Priority(out[i].Type) > pagegraph.Priority(out[j].Type)
	})
	if len(out) > maxURLsPerSitemap {
		out = out[:maxURLsPerSitemap]
	}
	return out
}

// sitemapLinkFromHTML extracts <link rel="sitemap"> from homepage HTML.
func sitemapLinkFromHTML(html, baseURL string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find(`link[rel="sitemap"]`).First().Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	return urlutil.Resolve(baseURL, href)
}
