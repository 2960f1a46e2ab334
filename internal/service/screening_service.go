package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// Screener runs one complete screening scan. Satisfied by engine.ScanEngine.
type Screener interface {
	Screen(ctx context.Context, input *models.MerchantInput) *models.KYCDecision
}

// ScreeningService handles synchronous screening requests.
type ScreeningService struct {
	screener Screener
	logger   *slog.Logger
}

// NewScreeningService creates a new screening service.
func NewScreeningService(screener Screener, logger *slog.Logger) *ScreeningService {
	return &ScreeningService{
		screener: screener,
		logger:   logger.With("component", "screening_service"),
	}
}

// Screen validates the merchant input and runs the scan to completion.
func (s *ScreeningService) Screen(ctx context.Context, input *models.MerchantInput) (*models.KYCDecision, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid screening request: %w", err)
	}

	decision := s.screener.Screen(ctx, input)

	s.logger.Info("screening completed",
		"url", input.WebsiteURL,
		"decision", decision.Decision,
		"confidence", decision.Confidence,
	)
	return decision, nil
}
