// Package robots fetches and evaluates robots.txt rules for a single site.
package robots

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

const fetchTimeout = 3 * time.Second

// Rules wraps the parsed robots.txt for one host. A nil inner group means no
// rules apply and every path is allowed.
type Rules struct {
	group      *robotstxt.Group
	sitemaps   []string
	crawlDelay time.Duration
	checked    bool
}

// Client fetches robots.txt documents.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a robots client sharing the crawler's User-Agent.
func NewClient(httpClient *http.Client, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger.With("component", "robots"),
	}
}

// Fetch retrieves and parses robots.txt for the site hosting rootURL.
// A missing file, a non-200 response, or any fetch error yields permissive
// rules. The error return is informational only.
func (c *Client) Fetch(ctx context.Context, rootURL string) (*Rules, error) {
	scheme := "https"
	if u, err := url.Parse(rootURL); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	robotsURL := scheme + "://" + urlutil.Host(rootURL) + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &Rules{checked: false}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt fetch failed, allowing all paths", "url", robotsURL, "error", err)
		return &Rules{checked: false}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots.txt not available, allowing all paths", "url", robotsURL, "status", resp.StatusCode)
		return &Rules{checked: true}, nil
	}

	return rulesFromResponse(resp, c.userAgent), nil
}

func rulesFromResponse(resp *http.Response, userAgent string) *Rules {
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return &Rules{checked: true}
	}
	group := data.FindGroup(userAgent)
	rules := &Rules{
		group:    group,
		sitemaps: data.Sitemaps,
		checked:  true,
	}
	if group != nil && group.CrawlDelay > 0 {
		rules.crawlDelay = group.CrawlDelay
	}
	return rules
}

// IsAllowed reports whether the crawler may fetch the given path.
func (r *Rules) IsAllowed(path string) bool {
	if r == nil || r.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return r.group.Test(path)
}

// Sitemaps returns sitemap URLs declared in robots.txt.
func (r *Rules) Sitemaps() []string {
	if r == nil {
		return nil
	}
	return r.sitemaps
}

// CrawlDelay returns the declared crawl delay, or zero.
func (r *Rules) CrawlDelay() time.Duration {
	if r == nil {
		return 0
	}
	return r.crawlDelay
}

// Checked reports whether a robots.txt response was actually evaluated.
func (r *Rules) Checked() bool {
	return r != nil && r.checked
}
