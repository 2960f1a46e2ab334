package worker

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/service"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// =============================================================================
// Mocks
// =============================================================================

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*models.Job)}
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobRepo) ClaimPending(ctx context.Context) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Status == models.JobStatusPending {
			now := time.Now().UTC()
			job.Status = models.JobStatusRunning
			job.StartedAt = &now
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepo) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var n int64
	for _, job := range m.jobs {
		if job.Status == models.JobStatusRunning && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			job.Status = models.JobStatusFailed
			job.ErrorMessage = "job timed out"
			n++
		}
	}
	return n, nil
}

func (m *mockJobRepo) UpdateWebhookStatus(ctx context.Context, id, status string, attempts int) error {
	return nil
}

type fakeScreener struct{}

func (fakeScreener) Screen(ctx context.Context, input *models.MerchantInput) *models.KYCDecision {
	return &models.KYCDecision{
		Decision:   models.DecisionPass,
		Confidence: 0.8,
		Summary:    "all checks passed",
	}
}

const merchantJSON = `{
	"merchant_legal_name": "Acme Trading Private Limited",
	"registered_address": "42 Commercial Street, Bangalore, KA 560001",
	"declared_business_type": "Retail - Apparel",
	"declared_products_services": ["clothing"],
	"website_url": "https://acme.example.com",
	"merchant_display_name": "Acme"
}`

func testWorker(repo *mockJobRepo) *Worker {
	cfg := &config.Config{WebhookTimeout: 5 * time.Second, WebhookMaxAttempts: 1}
	webhooks := service.NewWebhookService(cfg, repo, testLogger())
	return New(repo, fakeScreener{}, webhooks, Config{
		PollInterval:  10 * time.Millisecond,
		Concurrency:   1,
		ShutdownGrace: 5 * time.Second,
	}, testLogger())
}

func waitForStatus(t *testing.T, repo *mockJobRepo, jobID string, want models.JobStatus) *models.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := repo.GetByID(context.Background(), jobID)
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := repo.GetByID(context.Background(), jobID)
	t.Fatalf("job never reached %s, current: %+v", want, job)
	return nil
}

// =============================================================================
// Job processing
// =============================================================================

func TestWorkerProcessesPendingJob(t *testing.T) {
	repo := newMockJobRepo()
	repo.Create(context.Background(), &models.Job{
		ID:        "job-1",
		Status:    models.JobStatusPending,
		InputJSON: merchantJSON,
		CreatedAt: time.Now().UTC(),
	})

	w := testWorker(repo)
	w.Start(context.Background())
	defer w.Stop()

	job := waitForStatus(t, repo, "job-1", models.JobStatusCompleted)
	if !strings.Contains(job.ResultJSON, `"decision":"PASS"`) {
		t.Errorf("result JSON = %s", job.ResultJSON)
	}
	if job.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestWorkerFailsMalformedInput(t *testing.T) {
	repo := newMockJobRepo()
	repo.Create(context.Background(), &models.Job{
		ID:        "job-2",
		Status:    models.JobStatusPending,
		InputJSON: "not json",
		CreatedAt: time.Now().UTC(),
	})

	w := testWorker(repo)
	w.Start(context.Background())
	defer w.Stop()

	job := waitForStatus(t, repo, "job-2", models.JobStatusFailed)
	if !strings.Contains(job.ErrorMessage, "malformed job input") {
		t.Errorf("error message = %s", job.ErrorMessage)
	}
}

func TestWorkerDeliversWebhookOnCompletion(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("X-KYC-Job-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := newMockJobRepo()
	repo.Create(context.Background(), &models.Job{
		ID:         "job-3",
		Status:     models.JobStatusPending,
		InputJSON:  merchantJSON,
		WebhookURL: srv.URL,
		CreatedAt:  time.Now().UTC(),
	})

	w := testWorker(repo)
	w.Start(context.Background())
	defer w.Stop()

	select {
	case jobID := <-received:
		if jobID != "job-3" {
			t.Errorf("X-KYC-Job-ID = %s", jobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

// =============================================================================
// Stale job recovery
// =============================================================================

func TestStartMarksStaleRunningJobsFailed(t *testing.T) {
	repo := newMockJobRepo()
	started := time.Now().UTC().Add(-time.Hour)
	repo.Create(context.Background(), &models.Job{
		ID:        "job-4",
		Status:    models.JobStatusRunning,
		InputJSON: merchantJSON,
		StartedAt: &started,
		CreatedAt: started,
	})

	w := testWorker(repo)
	w.Start(context.Background())
	defer w.Stop()

	job := waitForStatus(t, repo, "job-4", models.JobStatusFailed)
	if job.ErrorMessage == "" {
		t.Error("stale job has no error message")
	}
}
