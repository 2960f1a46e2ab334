package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/repository"
)

// Webhook delivery outcomes recorded on the job row.
const (
	WebhookStatusDelivered = "delivered"
	WebhookStatusFailed    = "failed"
)

// WebhookService delivers completion notifications for async jobs.
type WebhookService struct {
	client      *http.Client
	jobs        repository.JobRepository
	maxAttempts int
	logger      *slog.Logger
	sleep       func(time.Duration)
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(cfg *config.Config, jobs repository.JobRepository, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		client:      &http.Client{Timeout: cfg.WebhookTimeout},
		jobs:        jobs,
		maxAttempts: cfg.WebhookMaxAttempts,
		logger:      logger.With("component", "webhook_service"),
		sleep:       time.Sleep,
	}
}

// Notify builds the completion payload for a finished job and delivers it.
// No-op for jobs without a webhook URL. The delivery outcome is recorded on
// the job row.
func (s *WebhookService) Notify(ctx context.Context, job *models.Job) error {
	if job.WebhookURL == "" {
		return nil
	}

	payload := models.WebhookPayload{
		JobID:       job.ID,
		ReferenceID: job.ReferenceID,
		Status:      string(job.Status),
		Error:       job.ErrorMessage,
	}
	if job.CompletedAt != nil {
		payload.CompletedAt = *job.CompletedAt
		if job.StartedAt != nil {
			payload.DurationSeconds = job.CompletedAt.Sub(*job.StartedAt).Seconds()
		}
	}
	if job.ResultJSON != "" {
		var decision models.KYCDecision
		if err := json.Unmarshal([]byte(job.ResultJSON), &decision); err == nil {
			payload.Result = &decision
		}
	}

	attempts, err := s.deliver(ctx, job, payload)

	status := WebhookStatusDelivered
	if err != nil {
		status = WebhookStatusFailed
	}
	if updateErr := s.jobs.UpdateWebhookStatus(ctx, job.ID, status, attempts); updateErr != nil {
		s.logger.Error("failed to record webhook status", "job_id", job.ID, "error", updateErr)
	}
	return err
}

// deliver POSTs the payload, retrying with exponential backoff. Any 2xx
// response counts as delivered.
func (s *WebhookService) deliver(ctx context.Context, job *models.Job, payload models.WebhookPayload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	extraHeaders := map[string]string{}
	if job.WebhookHeadersJSON != "" {
		if err := json.Unmarshal([]byte(job.WebhookHeadersJSON), &extraHeaders); err != nil {
			s.logger.Warn("ignoring malformed webhook headers", "job_id", job.ID, "error", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(time.Duration(1<<attempt) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return attempt, fmt.Errorf("failed to create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-KYC-Job-ID", job.ID)
		req.Header.Set("X-KYC-Webhook-Version", "1.0")
		for name, value := range extraHeaders {
			req.Header.Set(name, value)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("webhook delivery failed", "job_id", job.ID, "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.logger.Info("webhook delivered", "job_id", job.ID, "status", resp.StatusCode, "attempt", attempt)
			return attempt, nil
		}

		lastErr = &WebhookError{StatusCode: resp.StatusCode}
		s.logger.Warn("webhook non-success status", "job_id", job.ID, "status", resp.StatusCode, "attempt", attempt)
	}

	s.logger.Error("webhook delivery exhausted retries", "job_id", job.ID, "url", job.WebhookURL, "error", lastErr)
	return s.maxAttempts, lastErr
}

// WebhookError represents a webhook delivery error.
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook delivery failed with status %d", e.StatusCode)
}
