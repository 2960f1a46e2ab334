// Package service contains the business logic layer between the HTTP
// handlers and the scan engine: synchronous screening, the async job queue,
// and webhook delivery.
package service

import (
	"log/slog"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Screening *ScreeningService
	Job       *JobService
	Webhook   *WebhookService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, screener Screener, repos *repository.Repositories, logger *slog.Logger) *Services {
	return &Services{
		Screening: NewScreeningService(screener, logger),
		Job:       NewJobService(cfg, repos, logger),
		Webhook:   NewWebhookService(cfg, repos.Jobs, logger),
	}
}
