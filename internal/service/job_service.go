package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/repository"
)

// JobService handles async screening job operations.
type JobService struct {
	cfg    *config.Config
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) *JobService {
	return &JobService{
		cfg:    cfg,
		repos:  repos,
		logger: logger.With("component", "job_service"),
	}
}

// CreateScreeningJobInput represents input for queuing a screening job.
type CreateScreeningJobInput struct {
	Merchant       models.MerchantInput `json:"merchant"`
	ReferenceID    string               `json:"reference_id,omitempty"`
	WebhookURL     string               `json:"webhook_url,omitempty"`
	WebhookHeaders map[string]string    `json:"webhook_headers,omitempty"`
}

// CreateScreeningJobOutput represents output from queuing a screening job.
type CreateScreeningJobOutput struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// CreateScreeningJob validates the merchant input and queues a pending job.
func (s *JobService) CreateScreeningJob(ctx context.Context, input CreateScreeningJobInput) (*CreateScreeningJobOutput, error) {
	if err := input.Merchant.Validate(); err != nil {
		return nil, fmt.Errorf("invalid screening request: %w", err)
	}

	inputJSON, err := json.Marshal(input.Merchant)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize merchant input: %w", err)
	}

	var headersJSON string
	if len(input.WebhookHeaders) > 0 {
		raw, err := json.Marshal(input.WebhookHeaders)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize webhook headers: %w", err)
		}
		headersJSON = string(raw)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:                 ulid.Make().String(),
		ReferenceID:        input.ReferenceID,
		Status:             models.JobStatusPending,
		InputJSON:          string(inputJSON),
		WebhookURL:         input.WebhookURL,
		WebhookHeadersJSON: headersJSON,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repos.Jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("screening job queued", "job_id", job.ID, "url", input.Merchant.WebsiteURL)

	return &CreateScreeningJobOutput{
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: fmt.Sprintf("%s/api/v1/screenings/%s", s.cfg.BaseURL, job.ID),
	}, nil
}

// GetJob retrieves a job by ID. Returns (nil, nil) when the job does not
// exist.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.repos.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// DecodeResult unmarshals a completed job's stored decision. Returns nil for
// jobs without a result.
func (s *JobService) DecodeResult(job *models.Job) (*models.KYCDecision, error) {
	if job == nil || job.ResultJSON == "" {
		return nil, nil
	}
	var decision models.KYCDecision
	if err := json.Unmarshal([]byte(job.ResultJSON), &decision); err != nil {
		return nil, fmt.Errorf("failed to decode job result: %w", err)
	}
	return &decision, nil
}

// CompleteJob stores the decision and marks the job completed.
func (s *JobService) CompleteJob(ctx context.Context, job *models.Job, decision *models.KYCDecision) error {
	resultJSON, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to serialize decision: %w", err)
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.ResultJSON = string(resultJSON)
	job.CompletedAt = &now

	if err := s.repos.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// FailJob records an error and marks the job failed.
func (s *JobService) FailJob(ctx context.Context, job *models.Job, errMsg string) error {
	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &now

	if err := s.repos.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}
