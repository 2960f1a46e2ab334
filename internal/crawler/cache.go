package crawler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/repository"
)

// PageCache is a fail-open wrapper over the persistent page cache. Every
// error from the backing store is swallowed and treated as a miss or no-op so
// an unreachable cache never blocks a crawl.
type PageCache struct {
	repo       repository.PageCacheRepository
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewPageCache creates a page cache. A nil repository disables caching, and
// defaultTTL applies to page types without a specific lifetime.
func NewPageCache(repo repository.PageCacheRepository, defaultTTL time.Duration, logger *slog.Logger) *PageCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &PageCache{
		repo:       repo,
		defaultTTL: defaultTTL,
		logger:     logger.With("component", "page_cache"),
	}
}

// ttlFor returns the cache lifetime for a page type.
func (c *PageCache) ttlFor(pt pagegraph.PageType) time.Duration {
	switch pt {
	case pagegraph.PagePrivacyPolicy, pagegraph.PageTermsConditions:
		return 7 * 24 * time.Hour
	case pagegraph.PageAbout, pagegraph.PageContact, pagegraph.PageProduct, pagegraph.PagePricing:
		return 24 * time.Hour
	case pagegraph.PageHome:
		return 6 * time.Hour
	default:
		return c.defaultTTL
	}
}

// Get returns a cached artifact for the normalized URL, or nil on miss,
// expiry, or store failure.
func (c *PageCache) Get(ctx context.Context, normURL string) *pagegraph.PageArtifact {
	if c == nil || c.repo == nil {
		return nil
	}
	page, err := c.repo.Get(ctx, normURL)
	if err != nil {
		c.logger.Debug("cache read failed, treating as miss", "url", normURL, "error", err)
		return nil
	}
	if page == nil || time.Now().After(page.ExpiresAt) {
		return nil
	}

	a := &pagegraph.PageArtifact{
		RequestedURL: normURL,
		FinalURL:     normURL,
		Status:       page.Status,
		HTML:         page.HTML,
		CanonicalURL: page.CanonicalURL,
		Type:         pagegraph.PageType(page.PageType),
		ContentHash:  page.ContentHash,
		Source:       pagegraph.SourceCache,
		Render:       pagegraph.RenderCache,
		FetchedAt:    page.CreatedAt,
	}
	if page.Headers != "" {
		var headers map[string]string
		if json.Unmarshal([]byte(page.Headers), &headers) == nil {
			a.ContentType = headers["Content-Type"]
		}
	}
	return a
}

// Put stores a fetched artifact. Only status-200 artifacts are written.
func (c *PageCache) Put(ctx context.Context, normURL string, a *pagegraph.PageArtifact) {
	if c == nil || c.repo == nil || a == nil || a.Status != 200 {
		return
	}

	headers := ""
	if a.ContentType != "" {
		if b, err := json.Marshal(map[string]string{"Content-Type": a.ContentType}); err == nil {
			headers = string(b)
		}
	}

	now := time.Now().UTC()
	page := &models.CachedPage{
		URL:          normURL,
		CanonicalURL: a.CanonicalURL,
		PageType:     string(a.Type),
		ContentHash:  a.ContentHash,
		HTML:         a.HTML,
		Status:       a.Status,
		Headers:      headers,
		ExpiresAt:    now.Add(c.ttlFor(a.Type)),
		CreatedAt:    now,
	}
	if err := c.repo.Upsert(ctx, page); err != nil {
		c.logger.Debug("cache write failed, continuing", "url", normURL, "error", err)
	}
}
