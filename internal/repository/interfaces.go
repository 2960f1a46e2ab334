// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// JobRepository defines methods for screening job data access.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	// ClaimPending atomically claims the next pending job and returns it.
	// Returns (nil, nil) when no pending job exists.
	ClaimPending(ctx context.Context) (*models.Job, error)
	// MarkStaleRunningJobsFailed marks jobs running longer than maxAge as
	// failed and returns the number affected.
	MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error)
	// UpdateWebhookStatus records the outcome of a webhook delivery attempt.
	UpdateWebhookStatus(ctx context.Context, id, status string, attempts int) error
}

// PageCacheRepository defines methods for the persistent page cache.
// Implementations must fail open: errors surface to the caller, who treats
// them as cache misses.
type PageCacheRepository interface {
	Get(ctx context.Context, url string) (*models.CachedPage, error)
	Upsert(ctx context.Context, page *models.CachedPage) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repositories bundles all repository instances.
type Repositories struct {
	Jobs      JobRepository
	PageCache PageCacheRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Jobs:      NewSQLiteJobRepository(db),
		PageCache: NewSQLitePageCacheRepository(db),
	}
}
