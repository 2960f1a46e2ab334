package handlers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/repository"
	"github.com/merchantsafe/kyc-screener/internal/service"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

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

func (m *mockJobRepo) ClaimPending(ctx context.Context) (*models.Job, error) { return nil, nil }

func (m *mockJobRepo) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
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

func testHandler(repo *mockJobRepo) *ScreeningHandler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	screening := service.NewScreeningService(fakeScreener{}, testLogger())
	jobs := service.NewJobService(cfg, &repository.Repositories{Jobs: repo}, testLogger())
	return NewScreeningHandler(screening, jobs)
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
// Create
// =============================================================================

func TestCreateScreeningSync(t *testing.T) {
	h := testHandler(newMockJobRepo())

	input := &CreateScreeningInput{Wait: true}
	input.Body.Merchant = validMerchant()

	out, err := h.CreateScreening(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateScreening() error = %v", err)
	}
	if out.Status != 200 {
		t.Errorf("status = %d, want 200", out.Status)
	}
	if out.Body.Decision == nil || out.Body.Decision.Decision != models.DecisionPass {
		t.Errorf("decision = %+v", out.Body.Decision)
	}
	if out.Body.JobID != "" {
		t.Error("sync response carries a job ID")
	}
}

func TestCreateScreeningAsync(t *testing.T) {
	repo := newMockJobRepo()
	h := testHandler(repo)

	input := &CreateScreeningInput{}
	input.Body.Merchant = validMerchant()
	input.Body.WebhookURL = "https://hooks.example.com/kyc"

	out, err := h.CreateScreening(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateScreening() error = %v", err)
	}
	if out.Status != 202 {
		t.Errorf("status = %d, want 202", out.Status)
	}
	if out.Body.JobID == "" || out.Body.Status != "pending" {
		t.Errorf("job reference = %+v", out.Body)
	}
	if out.Body.Decision != nil {
		t.Error("async response carries a decision")
	}

	job, _ := repo.GetByID(context.Background(), out.Body.JobID)
	if job == nil {
		t.Fatal("job not persisted")
	}
	if job.WebhookURL != "https://hooks.example.com/kyc" {
		t.Errorf("webhook URL = %s", job.WebhookURL)
	}
}

func TestCreateScreeningRejectsInvalidMerchant(t *testing.T) {
	h := testHandler(newMockJobRepo())

	input := &CreateScreeningInput{Wait: true}
	input.Body.Merchant = validMerchant()
	input.Body.Merchant.WebsiteURL = ""

	_, err := h.CreateScreening(context.Background(), input)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if se, ok := err.(huma.StatusError); !ok || se.GetStatus() != 422 {
		t.Errorf("error = %v, want 422", err)
	}
}

// =============================================================================
// Get
// =============================================================================

func TestGetScreeningNotFound(t *testing.T) {
	h := testHandler(newMockJobRepo())

	_, err := h.GetScreening(context.Background(), &GetScreeningInput{ID: "missing"})
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if se, ok := err.(huma.StatusError); !ok || se.GetStatus() != 404 {
		t.Errorf("error = %v, want 404", err)
	}
}

func TestGetScreeningCompleted(t *testing.T) {
	repo := newMockJobRepo()
	h := testHandler(repo)

	completed := time.Now().UTC()
	repo.Create(context.Background(), &models.Job{
		ID:          "job-1",
		ReferenceID: "ref-1",
		Status:      models.JobStatusCompleted,
		ResultJSON:  `{"decision":"ESCALATE","confidence":0.75,"summary":"manual review"}`,
		CompletedAt: &completed,
		CreatedAt:   completed.Add(-time.Minute),
	})

	out, err := h.GetScreening(context.Background(), &GetScreeningInput{ID: "job-1"})
	if err != nil {
		t.Fatalf("GetScreening() error = %v", err)
	}
	if out.Body.Status != "completed" {
		t.Errorf("status = %s", out.Body.Status)
	}
	if out.Body.Decision == nil || out.Body.Decision.Decision != models.DecisionEscalate {
		t.Errorf("decision = %+v", out.Body.Decision)
	}
	if out.Body.ReferenceID != "ref-1" {
		t.Errorf("reference ID = %s", out.Body.ReferenceID)
	}
}

func TestGetScreeningPendingHasNoDecision(t *testing.T) {
	repo := newMockJobRepo()
	h := testHandler(repo)

	repo.Create(context.Background(), &models.Job{
		ID:        "job-2",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	})

	out, err := h.GetScreening(context.Background(), &GetScreeningInput{ID: "job-2"})
	if err != nil {
		t.Fatalf("GetScreening() error = %v", err)
	}
	if out.Body.Status != "pending" || out.Body.Decision != nil {
		t.Errorf("body = %+v", out.Body)
	}
}
