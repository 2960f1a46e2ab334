package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/repository"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// =============================================================================
// Mock job repository
// =============================================================================

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	webhookStatus   map[string]string
	webhookAttempts map[string]int
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{
		jobs:            make(map[string]*models.Job),
		webhookStatus:   make(map[string]string),
		webhookAttempts: make(map[string]int),
	}
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
	var oldest *models.Job
	for _, job := range m.jobs {
		if job.Status != models.JobStatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	oldest.Status = models.JobStatusRunning
	oldest.StartedAt = &now
	copied := *oldest
	return &copied, nil
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookStatus[id] = status
	m.webhookAttempts[id] = attempts
	return nil
}

func testJobService(repo *mockJobRepo) *JobService {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	return NewJobService(cfg, &repository.Repositories{Jobs: repo}, testLogger())
}

func validMerchant() models.MerchantInput {
	return models.MerchantInput{
		MerchantLegalName:        "Acme Trading Private Limited",
		RegisteredAddress:        "42 Commercial Street, Bangalore, KA 560001",
		DeclaredBusinessType:     "Retail - Apparel",
		DeclaredProductsServices: []string{"clothing"},
		WebsiteURL:               "https://acme.example.com",
		MerchantDisplayName:      "Acme",
	}
}

// =============================================================================
// Job creation
// =============================================================================

func TestCreateScreeningJob(t *testing.T) {
	repo := newMockJobRepo()
	svc := testJobService(repo)

	out, err := svc.CreateScreeningJob(context.Background(), CreateScreeningJobInput{
		Merchant:       validMerchant(),
		ReferenceID:    "ref-42",
		WebhookURL:     "https://hooks.example.com/kyc",
		WebhookHeaders: map[string]string{"Authorization": "Bearer tok"},
	})
	if err != nil {
		t.Fatalf("CreateScreeningJob() error = %v", err)
	}
	if out.JobID == "" {
		t.Fatal("empty job ID")
	}
	if out.Status != string(models.JobStatusPending) {
		t.Errorf("status = %s, want pending", out.Status)
	}
	if !strings.Contains(out.StatusURL, "/api/v1/screenings/"+out.JobID) {
		t.Errorf("status URL = %s", out.StatusURL)
	}

	job, _ := repo.GetByID(context.Background(), out.JobID)
	if job == nil {
		t.Fatal("job not persisted")
	}
	if !strings.Contains(job.InputJSON, "acme.example.com") {
		t.Error("merchant input not serialized into the job")
	}
	if job.ReferenceID != "ref-42" {
		t.Errorf("reference ID = %s", job.ReferenceID)
	}
	if !strings.Contains(job.WebhookHeadersJSON, "Authorization") {
		t.Error("webhook headers not serialized")
	}
}

func TestCreateScreeningJobRejectsInvalidInput(t *testing.T) {
	svc := testJobService(newMockJobRepo())

	merchant := validMerchant()
	merchant.WebsiteURL = ""
	_, err := svc.CreateScreeningJob(context.Background(), CreateScreeningJobInput{Merchant: merchant})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid screening request") {
		t.Errorf("error = %v", err)
	}
}

func TestGetJobMissing(t *testing.T) {
	svc := testJobService(newMockJobRepo())
	job, err := svc.GetJob(context.Background(), "nope")
	if err != nil || job != nil {
		t.Errorf("GetJob() = %v, %v, want nil, nil", job, err)
	}
}

// =============================================================================
// Completion and failure
// =============================================================================

func TestCompleteJobStoresDecision(t *testing.T) {
	repo := newMockJobRepo()
	svc := testJobService(repo)

	out, err := svc.CreateScreeningJob(context.Background(), CreateScreeningJobInput{Merchant: validMerchant()})
	if err != nil {
		t.Fatal(err)
	}
	job, _ := repo.GetByID(context.Background(), out.JobID)

	decision := &models.KYCDecision{
		Decision:   models.DecisionPass,
		Confidence: 0.82,
		Summary:    "all checks passed",
	}
	if err := svc.CompleteJob(context.Background(), job, decision); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), out.JobID)
	if stored.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	decoded, err := svc.DecodeResult(stored)
	if err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if decoded.Decision != models.DecisionPass || decoded.Confidence != 0.82 {
		t.Errorf("decoded decision = %+v", decoded)
	}
}

func TestFailJob(t *testing.T) {
	repo := newMockJobRepo()
	svc := testJobService(repo)

	out, _ := svc.CreateScreeningJob(context.Background(), CreateScreeningJobInput{Merchant: validMerchant()})
	job, _ := repo.GetByID(context.Background(), out.JobID)

	if err := svc.FailJob(context.Background(), job, "crawl exploded"); err != nil {
		t.Fatalf("FailJob() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), out.JobID)
	if stored.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage != "crawl exploded" {
		t.Errorf("error message = %s", stored.ErrorMessage)
	}
}

func TestDecodeResultEmpty(t *testing.T) {
	svc := testJobService(newMockJobRepo())
	decision, err := svc.DecodeResult(&models.Job{})
	if decision != nil || err != nil {
		t.Errorf("DecodeResult(empty) = %v, %v, want nil, nil", decision, err)
	}
}
