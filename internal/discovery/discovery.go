// Package discovery performs a supplementary one-hop link sweep over a
// merchant site when the sitemap and navigation passes yield too few crawl
// candidates.
package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

// Discovered is one internal link found during the sweep.
type Discovered struct {
	URL        string
	Anchor     string
	Type       pagegraph.PageType
	Confidence float64
}

// Sweeper finds additional internal URLs with a shallow colly crawl.
type Sweeper struct {
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
}

// NewSweeper creates a link sweeper.
func NewSweeper(userAgent string, timeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		logger:    logger.With("component", "discovery"),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Sweep visits seedURL and returns classified internal links, one hop only,
// capped at maxURLs. Already-known normalized URLs are excluded.
func (s *Sweeper) Sweep(ctx context.Context, seedURL string, known map[string]bool, maxURLs int) []Discovered {
	if maxURLs <= 0 {
		return nil
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(s.userAgent),
	)
	c.SetRequestTimeout(s.timeout)
	c.AllowedDomains = []string{urlutil.Host(seedURL), "www." + urlutil.Host(seedURL)}

	var mu sync.Mutex
	var out []Discovered
	seen := make(map[string]bool)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		abs := e.Request.AbsoluteURL(e.Attr("href"))
		if abs == "" || !urlutil.IsInternal(abs, seedURL) {
			return
		}
		norm := urlutil.Normalize(abs)

		mu.Lock()
		defer mu.Unlock()
		if seen[norm] || known[norm] || len(out) >= maxURLs {
			return
		}

		anchor := e.Text
		cls := urlutil.Classify(norm, anchor, "")
		if cls.Type == pagegraph.PageSkip {
			return
		}
		seen[norm] = true
		out = append(out, Discovered{
			URL:        norm,
			Anchor:     anchor,
			Type:       cls.Type,
			Confidence: cls.Confidence,
		})
	})

	if err := c.Visit(seedURL); err != nil {
		s.logger.Debug("link sweep failed", "url", seedURL, "error", err)
		return nil
	}
	c.Wait()

	s.logger.Debug("link sweep completed", "url", seedURL, "discovered", len(out))
	return out
}
