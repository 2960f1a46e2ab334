package service

import (
	"context"
	"testing"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

type fakeScreener struct {
	decision *models.KYCDecision
	called   bool
}

func (f *fakeScreener) Screen(ctx context.Context, input *models.MerchantInput) *models.KYCDecision {
	f.called = true
	return f.decision
}

// =============================================================================
// Synchronous screening
// =============================================================================

func TestScreenReturnsDecision(t *testing.T) {
	screener := &fakeScreener{decision: &models.KYCDecision{
		Decision:   models.DecisionPass,
		Confidence: 0.9,
	}}
	svc := NewScreeningService(screener, testLogger())

	merchant := validMerchant()
	decision, err := svc.Screen(context.Background(), &merchant)
	if err != nil {
		t.Fatalf("Screen() error = %v", err)
	}
	if decision.Decision != models.DecisionPass {
		t.Errorf("decision = %v", decision.Decision)
	}
	if !screener.called {
		t.Error("scan engine not invoked")
	}
}

func TestScreenRejectsInvalidInput(t *testing.T) {
	screener := &fakeScreener{}
	svc := NewScreeningService(screener, testLogger())

	merchant := validMerchant()
	merchant.MerchantLegalName = ""
	if _, err := svc.Screen(context.Background(), &merchant); err == nil {
		t.Fatal("expected validation error")
	}
	if screener.called {
		t.Error("scan engine invoked for invalid input")
	}
}
