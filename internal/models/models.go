// Package models defines the domain models shared across the screening
// pipeline: merchant input, the decision output, screening jobs, and the
// persisted page-cache row.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ScanVersion identifies the screening engine revision stamped on every
// decision.
const ScanVersion = "1.0"

// RiskTier is the merchant-declared risk banding.
type RiskTier string

const (
	RiskTierLow     RiskTier = "LOW"
	RiskTierMedium  RiskTier = "MEDIUM"
	RiskTierHigh    RiskTier = "HIGH"
	RiskTierUnknown RiskTier = "UNKNOWN"
)

// OptionalData carries merchant attributes that are not required for a scan.
type OptionalData struct {
	MCC                    string   `json:"mcc,omitempty"`
	CountryOfIncorporation string   `json:"country_of_incorporation,omitempty"` // ISO 3166-1 alpha-2
	RiskTier               RiskTier `json:"risk_tier,omitempty"`
}

// MerchantInput is the full screening request for one merchant.
type MerchantInput struct {
	MerchantLegalName        string        `json:"merchant_legal_name"`
	RegisteredAddress        string        `json:"registered_address"`
	DeclaredBusinessType     string        `json:"declared_business_type"`
	DeclaredProductsServices []string      `json:"declared_products_services"`
	WebsiteURL               string        `json:"website_url"`
	MerchantDisplayName      string        `json:"merchant_display_name"`
	OptionalData             *OptionalData `json:"optional_data,omitempty"`
}

// Validate checks field length and presence constraints.
func (m *MerchantInput) Validate() error {
	if n := len(strings.TrimSpace(m.MerchantLegalName)); n < 1 || n > 500 {
		return fmt.Errorf("merchant_legal_name must be 1-500 characters, got %d", n)
	}
	if n := len(strings.TrimSpace(m.RegisteredAddress)); n < 10 || n > 1000 {
		return fmt.Errorf("registered_address must be 10-1000 characters, got %d", n)
	}
	if n := len(strings.TrimSpace(m.DeclaredBusinessType)); n < 1 || n > 200 {
		return fmt.Errorf("declared_business_type must be 1-200 characters, got %d", n)
	}
	if len(m.DeclaredProductsServices) < 1 {
		return fmt.Errorf("declared_products_services must contain at least one item")
	}
	if strings.TrimSpace(m.WebsiteURL) == "" {
		return fmt.Errorf("website_url is required")
	}
	if n := len(strings.TrimSpace(m.MerchantDisplayName)); n < 1 || n > 200 {
		return fmt.Errorf("merchant_display_name must be 1-200 characters, got %d", n)
	}
	if m.OptionalData != nil && m.OptionalData.CountryOfIncorporation != "" {
		if len(m.OptionalData.CountryOfIncorporation) != 2 {
			return fmt.Errorf("country_of_incorporation must be an ISO 3166-1 alpha-2 code")
		}
	}
	return nil
}

// Decision is the final screening outcome.
type Decision string

const (
	DecisionPass     Decision = "PASS"
	DecisionFail     Decision = "FAIL"
	DecisionEscalate Decision = "ESCALATE"
)

// Severity ranks a reason code.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// ReasonCode is one triggered decision rule with its evidence.
type ReasonCode struct {
	Code            string   `json:"code"`
	Category        string   `json:"category"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	EvidenceURL     string   `json:"evidence_url,omitempty"`
	EvidenceSnippet string   `json:"evidence_snippet,omitempty"`
	IsAutoFail      bool     `json:"is_auto_fail"`
	IsAutoEscalate  bool     `json:"is_auto_escalate"`
}

// MatchStatus describes how well an extracted value matched a declared one.
type MatchStatus string

const (
	MatchStatusMatch          MatchStatus = "MATCH"
	MatchStatusPartialMatch   MatchStatus = "PARTIAL_MATCH"
	MatchStatusMismatch       MatchStatus = "MISMATCH"
	MatchStatusNoMatch        MatchStatus = "NO_MATCH"
	MatchStatusUnableToVerify MatchStatus = "UNABLE_TO_VERIFY"
)

// KYCDecision is the complete screening result returned to callers.
type KYCDecision struct {
	Decision             Decision             `json:"decision"`
	ReasonCodes          []ReasonCode         `json:"reason_codes"`
	Summary              string               `json:"summary"`
	Confidence           float64              `json:"confidence"`
	PolicyChecks         []PolicyCheckResult  `json:"policy_checks"`
	CheckoutFlow         *CheckoutFlowResult  `json:"checkout_flow,omitempty"`
	EntityMatch          *EntityMatchResult   `json:"entity_match,omitempty"`
	ComplianceScore      *ComplianceBreakdown `json:"compliance_score,omitempty"`
	DetectedBusinessType string               `json:"detected_business_type,omitempty"`
	DetectedMCC          *MCCResult           `json:"detected_mcc,omitempty"`
	ProductMatchStatus   MatchStatus          `json:"product_match_status,omitempty"`
	ContentRiskSummary   *ContentRiskResult   `json:"content_risk_summary,omitempty"`
	AuditTrail           *AuditTrail          `json:"audit_trail"`
	ScanVersion          string               `json:"scan_version"`
}

// JobStatus represents the status of a screening job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents an asynchronous screening job.
type Job struct {
	ID                 string     `json:"id"`
	ReferenceID        string     `json:"reference_id,omitempty"` // Caller-supplied correlation ID
	Status             JobStatus  `json:"status"`
	InputJSON          string     `json:"input_json"`
	ResultJSON         string     `json:"result_json,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	WebhookURL         string     `json:"webhook_url,omitempty"`
	WebhookHeadersJSON string     `json:"webhook_headers_json,omitempty"` // Client-supplied extra headers
	WebhookStatus      string     `json:"webhook_status,omitempty"`
	WebhookAttempts    int        `json:"webhook_attempts"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// WebhookPayload is the body POSTed to a job's webhook URL on completion.
type WebhookPayload struct {
	JobID           string       `json:"job_id"`
	ReferenceID     string       `json:"reference_id,omitempty"`
	Status          string       `json:"status"` // completed or failed
	CompletedAt     time.Time    `json:"completed_at"`
	DurationSeconds float64      `json:"duration_seconds"`
	Result          *KYCDecision `json:"result,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// CachedPage is one row of the persistent page cache, keyed by URL.
type CachedPage struct {
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	PageType     string    `json:"page_type"`
	ContentHash  string    `json:"content_hash"`
	HTML         string    `json:"html"`
	Status       int       `json:"status"`
	Headers      string    `json:"headers,omitempty"` // JSON-encoded response headers
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
