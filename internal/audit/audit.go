// Package audit builds the append-only trail of one screening scan. Every
// check, keyword trigger, evidence snippet, and timestamped event is recorded
// in insertion order; the trail is immutable once built.
package audit

import (
	"sync"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// Builder accumulates audit records during a scan. Safe for concurrent use;
// analyzers and the checkout probe run in parallel.
type Builder struct {
	mu    sync.Mutex
	trail models.AuditTrail
	built bool
}

// NewBuilder starts a trail for one scan.
func NewBuilder(scanID, targetURL string) *Builder {
	return &Builder{
		trail: models.AuditTrail{
			ScanID:    scanID,
			TargetURL: targetURL,
			StartedAt: time.Now().UTC(),
		},
	}
}

// AddCheck records one verification with its outcome.
func (b *Builder) AddCheck(name string, status models.CheckStatus, detail, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return
	}
	b.trail.Checks = append(b.trail.Checks, models.AuditCheck{
		Name: name, Status: status, Detail: detail, URL: url,
	})
}

// AddKeywordTrigger records a restricted-keyword signal.
func (b *Builder) AddKeywordTrigger(category, keyword, url, intent string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return
	}
	b.trail.KeywordTriggers = append(b.trail.KeywordTriggers, models.KeywordTrigger{
		Category: category, Keyword: keyword, URL: url, Intent: intent,
	})
}

// AddEvidence records a supporting text excerpt.
func (b *Builder) AddEvidence(url, snippet, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return
	}
	b.trail.EvidenceSnippets = append(b.trail.EvidenceSnippets, models.EvidenceSnippet{
		URL: url, Snippet: snippet, Label: label,
	})
}

// AddEvent appends a timestamped timeline entry.
func (b *Builder) AddEvent(event, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return
	}
	b.trail.Timeline = append(b.trail.Timeline, models.TimelineEvent{
		At: time.Now().UTC(), Event: event, Detail: detail,
	})
}

// SetCrawlSummary attaches crawl completion data.
func (b *Builder) SetCrawlSummary(finalURL string, urlsVisited []string, pagesScanned int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return
	}
	b.trail.FinalURL = finalURL
	b.trail.URLsVisited = urlsVisited
	b.trail.PagesScanned = pagesScanned
}

// Build finalizes the trail. Further writes are ignored.
func (b *Builder) Build() *models.AuditTrail {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true
	b.trail.CompletedAt = time.Now().UTC()
	b.trail.DurationSeconds = b.trail.CompletedAt.Sub(b.trail.StartedAt).Seconds()

	trail := b.trail
	return &trail
}
