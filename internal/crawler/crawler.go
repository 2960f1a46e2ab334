// Package crawler builds the normalized page graph for a merchant site under
// strict page, depth, and time budgets.
package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/discovery"
	"github.com/merchantsafe/kyc-screener/internal/htmlutil"
	"github.com/merchantsafe/kyc-screener/internal/nav"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/robots"
	"github.com/merchantsafe/kyc-screener/internal/sitemap"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

// minNavCandidates triggers the supplementary link sweep when the sitemap and
// navigation passes find fewer candidates than this.
const minNavCandidates = 3

// Crawler fetches a site into a page graph.
type Crawler struct {
	logger  *slog.Logger
	cfg     *config.Config
	client  *http.Client
	fetcher *fetcher
	robots  *robots.Client
	sitemap *sitemap.Service
	sweeper *discovery.Sweeper
	cache   *PageCache
}

// New creates a crawler. The cache may be nil.
func New(cfg *config.Config, cache *PageCache, logger *slog.Logger) *Crawler {
	// Timeouts are applied per request via context so the sitemap and robots
	// fetches can use their own budgets.
	client := &http.Client{}
	return &Crawler{
		logger:  logger.With("component", "crawler"),
		cfg:     cfg,
		client:  client,
		fetcher: newFetcher(client, cfg.UserAgent, cfg.CrawlPerPageTimeout),
		robots:  robots.NewClient(client, cfg.UserAgent, logger),
		sitemap: sitemap.NewService(client, cfg.UserAgent, logger),
		sweeper: discovery.NewSweeper(cfg.UserAgent, cfg.CrawlPerPageTimeout, logger),
		cache:   cache,
	}
}

type queueItem struct {
	url        string
	depth      int
	source     pagegraph.SourceTag
	pageType   pagegraph.PageType
	confidence float64
}

// Crawl fetches rootURL and its discovered pages into a graph. The returned
// graph is well-formed even on total failure: it always contains a homepage
// artifact, possibly an error one.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) *pagegraph.Graph {
	start := time.Now().UTC()
	graph := pagegraph.NewGraph()
	meta := pagegraph.Metadata{StartedAt: start}

	root := urlutil.Normalize(urlutil.EnsureScheme(rootURL))
	c.logger.Info("crawl starting", "url", root)

	ctx, cancelBudget := context.WithTimeout(ctx, c.cfg.CrawlTotalBudget)
	defer cancelBudget()

	rules, _ := c.robots.Fetch(ctx, root)
	meta.RobotsChecked = rules.Checked()

	// The homepage always bypasses the cache and is always present in the
	// returned graph.
	home := c.fetcher.fetch(ctx, root, 0, pagegraph.SourceRoot)
	home.Type = pagegraph.PageHome
	home.Confidence = 1.0
	graph.AddPage(root, home)
	meta.PagesDiscovered = 1

	if !home.OK() {
		if home.Error != nil {
			graph.RecordError(*home.Error)
		}
		c.finish(graph, &meta, start, ctx)
		c.logger.Warn("homepage fetch failed, returning single-artifact graph",
			"url", root, "status", home.Status)
		return graph
	}
	c.cache.Put(ctx, root, home)

	queue := c.buildQueue(ctx, root, home, rules, &meta)
	meta.PagesDiscovered += len(queue)

	c.fetchConcurrently(ctx, graph, rules, queue, &meta)
	c.finish(graph, &meta, start, ctx)

	c.logger.Info("crawl completed",
		"url", root,
		"pages_fetched", meta.PagesFetched,
		"pages_skipped", meta.PagesSkipped,
		"duration", meta.Duration,
		"early_exit", meta.EarlyExit,
		"timed_out", meta.TimedOut,
	)
	return graph
}

// buildQueue assembles the fetch queue: sitemap candidates first, then
// primary navigation, then secondary, each filtered against robots rules and
// deduplicated, capped at MaxPages-1.
func (c *Crawler) buildQueue(ctx context.Context, root string, home *pagegraph.PageArtifact, rules *robots.Rules, meta *pagegraph.Metadata) []queueItem {
	seen := map[string]bool{root: true}
	var queue []queueItem

	add := func(url string, depth int, source pagegraph.SourceTag, pt pagegraph.PageType, conf float64) {
		if len(queue) >= c.cfg.CrawlMaxPages-1 {
			return
		}
		if seen[url] || depth > c.cfg.CrawlMaxDepth {
			return
		}
		if !rules.IsAllowed(pathOf(url)) {
			// Robots-denied URLs never enter the queue; the per-URL check in
			// processURL covers races with late rule evaluation.
			meta.PagesSkipped++
			return
		}
		seen[url] = true
		queue = append(queue, queueItem{url: url, depth: depth, source: source, pageType: pt, confidence: conf})
	}

	candidates, sitemapFound := c.sitemap.Discover(ctx, root, rules.Sitemaps(), home.HTML)
	meta.SitemapFound = sitemapFound
	for _, s := range candidates {
		add(s.URL, 1, pagegraph.SourceSitemap, s.Type, s.Confidence)
	}
	meta.SitemapUsed = sitemapFound && len(queue) > 0

	doc, err := htmlutil.Parse(home.HTML)
	if err == nil {
		for _, n := range nav.DiscoverPrimary(doc, root) {
			add(n.URL, 1, pagegraph.SourceNavPrimary, n.Type, n.Confidence)
		}
		if !sitemapFound {
			for _, n := range nav.DiscoverSecondary(doc, root) {
				add(n.URL, 1, pagegraph.SourceNavSecondary, n.Type, n.Confidence)
			}
		}
	}

	// Sparse navigation: sweep the homepage once more with a tolerant link
	// collector before giving up on candidates.
	if len(queue) < minNavCandidates {
		for _, d := range c.sweeper.Sweep(ctx, root, seen, c.cfg.CrawlMaxPages-1-len(queue)) {
			add(d.URL, 1, pagegraph.SourceMenu, d.Type, d.Confidence)
		}
	}

	return queue
}

// fetchConcurrently drains the queue with bounded concurrency, early-exit
// evaluation after each insert, and budget-aware skipping.
func (c *Crawler) fetchConcurrently(ctx context.Context, graph *pagegraph.Graph, rules *robots.Rules, queue []queueItem, meta *pagegraph.Metadata) {
	fetchCtx, stop := context.WithCancel(ctx)
	defer stop()

	sem := make(chan struct{}, c.cfg.CrawlConcurrency)
	var wg sync.WaitGroup
	var fetched, skipped atomic.Int64
	var earlyExit atomic.Bool

	for _, item := range queue {
		wg.Add(1)
		go func(it queueItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-fetchCtx.Done():
				skipped.Add(1)
				return
			}
			if fetchCtx.Err() != nil {
				skipped.Add(1)
				return
			}

			if ok := c.processURL(fetchCtx, graph, rules, it); ok {
				fetched.Add(1)
			} else {
				skipped.Add(1)
			}

			if graph.EarlyExitSatisfied() && earlyExit.CompareAndSwap(false, true) {
				stop()
			}
		}(item)
	}
	wg.Wait()

	meta.PagesFetched = int(fetched.Load()) + 1 // homepage
	meta.PagesSkipped += int(skipped.Load())
	if earlyExit.Load() {
		meta.EarlyExit = true
		meta.EarlyExitReason = "early exit triggered"
	}
}

// processURL runs the per-URL state machine: robots check, cache lookup,
// fetch, classify, insert. Returns true when a successful artifact was added.
func (c *Crawler) processURL(ctx context.Context, graph *pagegraph.Graph, rules *robots.Rules, it queueItem) bool {
	if !rules.IsAllowed(pathOf(it.url)) {
		blocked := &pagegraph.PageArtifact{
			RequestedURL: it.url,
			Status:       0,
			Depth:        it.depth,
			Source:       it.source,
			Type:         it.pageType,
			Confidence:   it.confidence,
			Render:       pagegraph.RenderHTTP,
			FetchedAt:    time.Now().UTC(),
			Error: &pagegraph.CrawlError{
				Kind:    pagegraph.ErrKindBlocked,
				Message: "disallowed by robots.txt",
				URL:     it.url,
			},
		}
		graph.AddPage(it.url, blocked)
		graph.RecordError(*blocked.Error)
		return false
	}

	if cached := c.cache.Get(ctx, it.url); cached != nil {
		cached.Depth = it.depth
		if cached.VisibleText == "" && cached.HTML != "" {
			parseArtifactHTML(cached)
			cached.Source = pagegraph.SourceCache
			cached.Render = pagegraph.RenderCache
		}
		if it.confidence > cached.Confidence {
			cached.Type = it.pageType
			cached.Confidence = it.confidence
		}
		graph.AddPage(it.url, cached)
		return cached.OK()
	}

	a := c.fetcher.fetch(ctx, it.url, it.depth, it.source)
	if it.confidence > a.Confidence {
		a.Type = it.pageType
		a.Confidence = it.confidence
	}
	graph.AddPage(it.url, a)
	if a.Error != nil {
		graph.RecordError(*a.Error)
		return false
	}
	if a.Status == 200 {
		c.cache.Put(ctx, it.url, a)
		return true
	}
	return false
}

func (c *Crawler) finish(graph *pagegraph.Graph, meta *pagegraph.Metadata, start time.Time, ctx context.Context) {
	meta.CompletedAt = time.Now().UTC()
	meta.Duration = meta.CompletedAt.Sub(start)
	if ctx.Err() == context.DeadlineExceeded {
		meta.TimedOut = true
	}
	if meta.PagesFetched == 0 {
		// Homepage-only crawl still counts its single artifact.
		if home, ok := graph.Home(); ok && home.OK() {
			meta.PagesFetched = 1
		}
	}
	graph.SetMetadata(*meta)
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
