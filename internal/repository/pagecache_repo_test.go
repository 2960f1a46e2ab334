package repository

import (
	"context"
	"testing"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

func newCachedPage(url string) *models.CachedPage {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.CachedPage{
		URL:         url,
		PageType:    "home",
		ContentHash: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HTML:        "<html><body>hello</body></html>",
		Status:      200,
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}
}

// =============================================================================
// Upsert / Get
// =============================================================================

func TestPageCacheUpsertAndGet(t *testing.T) {
	repo := NewSQLitePageCacheRepository(setupTestDB(t))
	ctx := context.Background()

	page := newCachedPage("https://example.com/")
	if err := repo.Upsert(ctx, page); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "https://example.com/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want page")
	}
	if got.PageType != "home" || got.Status != 200 {
		t.Errorf("got %+v", got)
	}
}

func TestPageCacheUpsertReplaces(t *testing.T) {
	repo := NewSQLitePageCacheRepository(setupTestDB(t))
	ctx := context.Background()

	page := newCachedPage("https://example.com/about")
	if err := repo.Upsert(ctx, page); err != nil {
		t.Fatal(err)
	}

	page.HTML = "<html><body>updated</body></html>"
	page.PageType = "about"
	if err := repo.Upsert(ctx, page); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := repo.Get(ctx, "https://example.com/about")
	if err != nil {
		t.Fatal(err)
	}
	if got.PageType != "about" {
		t.Errorf("PageType = %q, want about after upsert", got.PageType)
	}
}

func TestPageCacheGetMissing(t *testing.T) {
	repo := NewSQLitePageCacheRepository(setupTestDB(t))

	got, err := repo.Get(context.Background(), "https://example.com/missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

// =============================================================================
// DeleteExpired
// =============================================================================

func TestPageCacheDeleteExpired(t *testing.T) {
	repo := NewSQLitePageCacheRepository(setupTestDB(t))
	ctx := context.Background()

	fresh := newCachedPage("https://example.com/fresh")
	stale := newCachedPage("https://example.com/stale")
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	if err := repo.Upsert(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(ctx, stale); err != nil {
		t.Fatal(err)
	}

	n, err := repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	if got, _ := repo.Get(ctx, "https://example.com/stale"); got != nil {
		t.Error("stale entry still present")
	}
	if got, _ := repo.Get(ctx, "https://example.com/fresh"); got == nil {
		t.Error("fresh entry was deleted")
	}
}
