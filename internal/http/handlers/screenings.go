package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/service"
)

// ScreeningHandler serves the screening endpoints.
type ScreeningHandler struct {
	screening *service.ScreeningService
	jobs      *service.JobService
}

// NewScreeningHandler creates a screening handler.
func NewScreeningHandler(screening *service.ScreeningService, jobs *service.JobService) *ScreeningHandler {
	return &ScreeningHandler{screening: screening, jobs: jobs}
}

// CreateScreeningInput represents a screening request.
type CreateScreeningInput struct {
	Wait bool `query:"wait" doc:"Run the scan synchronously and return the decision in the response"`
	Body struct {
		Merchant       models.MerchantInput `json:"merchant"`
		ReferenceID    string               `json:"reference_id,omitempty" maxLength:"200" doc:"Caller-supplied correlation ID, echoed in the webhook payload"`
		WebhookURL     string               `json:"webhook_url,omitempty" doc:"URL to POST the decision to when the async scan finishes"`
		WebhookHeaders map[string]string    `json:"webhook_headers,omitempty" doc:"Extra headers sent with the webhook"`
	}
}

// CreateScreeningOutput represents a screening response. Synchronous requests
// carry the decision; async requests carry the queued job reference.
type CreateScreeningOutput struct {
	Status int
	Body   struct {
		JobID     string              `json:"job_id,omitempty"`
		Status    string              `json:"status,omitempty"`
		StatusURL string              `json:"status_url,omitempty"`
		Decision  *models.KYCDecision `json:"decision,omitempty"`
	}
}

// CreateScreening runs a scan inline (wait=true) or queues it as a job.
func (h *ScreeningHandler) CreateScreening(ctx context.Context, input *CreateScreeningInput) (*CreateScreeningOutput, error) {
	if err := input.Body.Merchant.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	out := &CreateScreeningOutput{}

	if input.Wait {
		decision, err := h.screening.Screen(ctx, &input.Body.Merchant)
		if err != nil {
			return nil, huma.Error500InternalServerError("screening failed", err)
		}
		out.Status = http.StatusOK
		out.Body.Decision = decision
		return out, nil
	}

	created, err := h.jobs.CreateScreeningJob(ctx, service.CreateScreeningJobInput{
		Merchant:       input.Body.Merchant,
		ReferenceID:    input.Body.ReferenceID,
		WebhookURL:     input.Body.WebhookURL,
		WebhookHeaders: input.Body.WebhookHeaders,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to queue screening", err)
	}

	out.Status = http.StatusAccepted
	out.Body.JobID = created.JobID
	out.Body.Status = created.Status
	out.Body.StatusURL = created.StatusURL
	return out, nil
}

// GetScreeningInput identifies one screening job.
type GetScreeningInput struct {
	ID string `path:"id" maxLength:"26" doc:"Screening job ID"`
}

// GetScreeningOutput represents the status of one screening job.
type GetScreeningOutput struct {
	Body struct {
		JobID           string              `json:"job_id"`
		ReferenceID     string              `json:"reference_id,omitempty"`
		Status          string              `json:"status"`
		CreatedAt       time.Time           `json:"created_at"`
		StartedAt       *time.Time          `json:"started_at,omitempty"`
		CompletedAt     *time.Time          `json:"completed_at,omitempty"`
		Decision        *models.KYCDecision `json:"decision,omitempty"`
		Error           string              `json:"error,omitempty"`
		WebhookStatus   string              `json:"webhook_status,omitempty"`
		WebhookAttempts int                 `json:"webhook_attempts,omitempty"`
	}
}

// GetScreening returns the job status and, once completed, the decision.
func (h *ScreeningHandler) GetScreening(ctx context.Context, input *GetScreeningInput) (*GetScreeningOutput, error) {
	job, err := h.jobs.GetJob(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load screening", err)
	}
	if job == nil {
		return nil, huma.Error404NotFound("screening job not found")
	}

	decision, err := h.jobs.DecodeResult(job)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to decode screening result", err)
	}

	out := &GetScreeningOutput{}
	out.Body.JobID = job.ID
	out.Body.ReferenceID = job.ReferenceID
	out.Body.Status = string(job.Status)
	out.Body.CreatedAt = job.CreatedAt
	out.Body.StartedAt = job.StartedAt
	out.Body.CompletedAt = job.CompletedAt
	out.Body.Decision = decision
	out.Body.Error = job.ErrorMessage
	out.Body.WebhookStatus = job.WebhookStatus
	out.Body.WebhookAttempts = job.WebhookAttempts
	return out, nil
}
