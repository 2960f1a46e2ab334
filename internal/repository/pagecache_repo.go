package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// SQLitePageCacheRepository implements PageCacheRepository for SQLite.
type SQLitePageCacheRepository struct {
	db *sql.DB
}

// NewSQLitePageCacheRepository creates a new SQLite page cache repository.
func NewSQLitePageCacheRepository(db *sql.DB) *SQLitePageCacheRepository {
	return &SQLitePageCacheRepository{db: db}
}

// Get returns the cached page for a URL, or nil when absent. Expiry is the
// caller's concern.
func (r *SQLitePageCacheRepository) Get(ctx context.Context, url string) (*models.CachedPage, error) {
	query := `
		SELECT url, canonical_url, page_type, content_hash, html, status, headers, expires_at, created_at
		FROM page_cache WHERE url = ?
	`
	var page models.CachedPage
	var canonicalURL, headers sql.NullString
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx, query, url).Scan(
		&page.URL, &canonicalURL, &page.PageType, &page.ContentHash,
		&page.HTML, &page.Status, &headers, &expiresAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached page: %w", err)
	}

	page.CanonicalURL = canonicalURL.String
	page.Headers = headers.String
	page.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	page.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &page, nil
}

// Upsert stores a page, replacing any existing row for the same URL.
func (r *SQLitePageCacheRepository) Upsert(ctx context.Context, page *models.CachedPage) error {
	query := `
		INSERT INTO page_cache (url, canonical_url, page_type, content_hash, html, status, headers, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			canonical_url = excluded.canonical_url,
			page_type = excluded.page_type,
			content_hash = excluded.content_hash,
			html = excluded.html,
			status = excluded.status,
			headers = excluded.headers,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query,
		page.URL,
		nullString(page.CanonicalURL),
		page.PageType,
		page.ContentHash,
		page.HTML,
		page.Status,
		nullString(page.Headers),
		page.ExpiresAt.UTC().Format(time.RFC3339),
		page.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cached page: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose TTL has passed.
func (r *SQLitePageCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at < ?`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pages: %w", err)
	}
	return res.RowsAffected()
}
