package models

import "time"

// Intent classifies the context surrounding a restricted keyword hit.
type Intent string

const (
	IntentProhibitive Intent = "prohibitive"
	IntentPromotional Intent = "promotional"
	IntentNeutral     Intent = "neutral"
)

// HitSeverity ranks an individual keyword hit.
type HitSeverity string

const (
	HitSeverityCritical HitSeverity = "critical"
	HitSeverityModerate HitSeverity = "moderate"
	HitSeverityLow      HitSeverity = "low"
)

// RestrictedKeywordHit is one restricted-keyword occurrence with its evidence.
// A prohibitive hit on a policy page is informational and contributes nothing
// to risk scoring or decisions.
type RestrictedKeywordHit struct {
	Category     string      `json:"category"`
	Keyword      string      `json:"keyword"`
	PageURL      string      `json:"page_url"`
	Snippet      string      `json:"snippet"`
	Intent       Intent      `json:"intent"`
	PageType     string      `json:"page_type"`
	Corroborated bool        `json:"corroborated"`
	Severity     HitSeverity `json:"severity"`
}

// DummyTextHit records a placeholder-text detection.
type DummyTextHit struct {
	PageURL string `json:"page_url"`
	Snippet string `json:"snippet"`
}

// ContentRiskResult aggregates the content risk analysis across all pages.
type ContentRiskResult struct {
	RestrictedKeywordsFound []RestrictedKeywordHit `json:"restricted_keywords_found"`
	Corroboration           map[string][]string    `json:"corroboration"` // category -> distinct URLs
	PolicyMentionsCount     int                    `json:"policy_mentions_count"`
	RiskContributingCount   int                    `json:"risk_contributing_count"`
	DummyWordsDetected      bool                   `json:"dummy_words_detected"`
	DummyTextHits           []DummyTextHit         `json:"dummy_text_hits,omitempty"`
}

// PolicyExpectation states whether a policy is expected for the business
// context.
type PolicyExpectation string

const (
	PolicyRequired      PolicyExpectation = "required"
	PolicyOptional      PolicyExpectation = "optional"
	PolicyNotApplicable PolicyExpectation = "n_a"
)

// PolicyCheckResult is the presence check for one policy type.
type PolicyCheckResult struct {
	PolicyType          string            `json:"policy_type"`
	Found               bool              `json:"found"`
	URL                 string            `json:"url,omitempty"`
	ContentLength       int               `json:"content_length,omitempty"`
	HasRequiredKeywords bool              `json:"has_required_keywords"`
	Expectation         PolicyExpectation `json:"expectation"`
	Evidence            string            `json:"evidence,omitempty"`
}

// DeadCTA records a call-to-action element that failed to respond.
type DeadCTA struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// CheckoutFlowResult captures the browser-driven checkout probe.
type CheckoutFlowResult struct {
	HasCTA             bool      `json:"has_cta"`
	CTAClickable       bool      `json:"cta_clickable"`
	CheckoutReachable  bool      `json:"checkout_reachable"`
	CheckoutURL        string    `json:"checkout_url,omitempty"`
	CheckoutConfidence float64   `json:"checkout_confidence"`
	PricingVisible     bool      `json:"pricing_visible"`
	FormFieldsPresent  bool      `json:"form_fields_present"`
	DeadCTAs           []DeadCTA `json:"dead_ctas,omitempty"`
	Evidence           string    `json:"evidence,omitempty"`
}

// EntityMatchResult compares the declared legal name against names extracted
// from the site.
type EntityMatchResult struct {
	DeclaredName   string      `json:"declared_name"`
	ExtractedNames []string    `json:"extracted_names"`
	BestMatch      string      `json:"best_match,omitempty"`
	MatchScore     float64     `json:"match_score"` // 0-100
	MatchStatus    MatchStatus `json:"match_status"`
	AddressMatch   *bool       `json:"address_match,omitempty"`
}

// ScoreComponent is one attributed line item of a compliance sub-score.
type ScoreComponent struct {
	Category        string  `json:"category"` // technical, policy, trust
	Name            string  `json:"name"`
	Points          float64 `json:"points"`
	Max             float64 `json:"max"`
	Reason          string  `json:"reason"`
	SignalReference string  `json:"signal_reference,omitempty"`
	EvidenceURL     string  `json:"evidence_url,omitempty"`
	EvidenceSnippet string  `json:"evidence_snippet,omitempty"`
}

// ComplianceRating bands the overall compliance score.
type ComplianceRating string

const (
	RatingGood ComplianceRating = "Good" // >= 80
	RatingFair ComplianceRating = "Fair" // 50-79
	RatingPoor ComplianceRating = "Poor" // < 50
)

// ComplianceBreakdown is the 0-100 advisory compliance score with per-signal
// attribution.
type ComplianceBreakdown struct {
	Overall    float64          `json:"overall"`   // 0-100
	Technical  float64          `json:"technical"` // 0-30
	Policy     float64          `json:"policy"`    // 0-40
	Trust      float64          `json:"trust"`     // 0-30
	Rating     ComplianceRating `json:"rating"`
	Components []ScoreComponent `json:"components"`
}

// BusinessType is the inferred primary business model.
type BusinessType string

const (
	BusinessEcommerce   BusinessType = "ECOMMERCE_MERCHANT"
	BusinessMarketplace BusinessType = "MARKETPLACE"
	BusinessSaaS        BusinessType = "SAAS_PRODUCT"
	BusinessFintech     BusinessType = "FINTECH_INFRASTRUCTURE"
	BusinessBlockchain  BusinessType = "BLOCKCHAIN_INFRASTRUCTURE"
	BusinessContent     BusinessType = "CONTENT_MEDIA"
	BusinessDevPlatform BusinessType = "DEVELOPER_PLATFORM"
	BusinessUnknown     BusinessType = "UNKNOWN"
)

// ContextStatus qualifies the confidence of the business-context inference.
type ContextStatus string

const (
	ContextDetermined    ContextStatus = "DETERMINED"
	ContextLowConfidence ContextStatus = "LOW_CONFIDENCE"
	ContextUndetermined  ContextStatus = "UNDETERMINED"
)

// FrontendSurface describes what kind of frontend the site presents.
type FrontendSurface string

const (
	SurfaceFullCommerce  FrontendSurface = "FULL_COMMERCE"
	SurfaceMarketingSite FrontendSurface = "MARKETING_SITE"
	SurfaceAuthGated     FrontendSurface = "AUTH_GATED"
	SurfaceContentOnly   FrontendSurface = "CONTENT_ONLY"
	SurfaceAPIDocs       FrontendSurface = "API_DOCS"
	SurfaceUnknown       FrontendSurface = "UNKNOWN"
)

// ContextAlternative is a runner-up business type with its score.
type ContextAlternative struct {
	Type  BusinessType `json:"type"`
	Score float64      `json:"score"`
}

// BusinessContext is the evidence-based business model inference.
type BusinessContext struct {
	Primary         BusinessType         `json:"primary"`
	Status          ContextStatus        `json:"status"`
	Confidence      float64              `json:"confidence"`
	FrontendSurface FrontendSurface      `json:"frontend_surface"`
	Alternatives    []ContextAlternative `json:"alternatives,omitempty"`
}

// MCCMatch is one merchant-category-code candidate with its evidence pages.
type MCCMatch struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Code        string   `json:"code"`
	Score       int      `json:"score"` // raw keyword occurrence count
	Confidence  float64  `json:"confidence"`
	Pages       []string `json:"pages,omitempty"`
}

// MCCResult is the MCC classification across all fetched pages.
type MCCResult struct {
	Primary       *MCCMatch  `json:"primary,omitempty"`
	Secondary     []MCCMatch `json:"secondary,omitempty"`
	LowConfidence bool       `json:"low_confidence"`
}

// CheckStatus is the outcome of one audit check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckFail CheckStatus = "fail"
	CheckFlag CheckStatus = "flag"
	CheckInfo CheckStatus = "info"
)

// AuditCheck records one verification performed during a scan.
type AuditCheck struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
	URL    string      `json:"url,omitempty"`
}

// KeywordTrigger records one keyword-driven signal in the audit trail.
type KeywordTrigger struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
	URL      string `json:"url"`
	Intent   string `json:"intent"`
}

// EvidenceSnippet is a captured excerpt supporting a check or trigger.
type EvidenceSnippet struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Label   string `json:"label,omitempty"`
}

// TimelineEvent is one timestamped step of a scan.
type TimelineEvent struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail,omitempty"`
}

// AuditTrail is the complete, append-only record of one scan. Immutable after
// the audit builder finalizes it.
type AuditTrail struct {
	ScanID           string            `json:"scan_id"`
	TargetURL        string            `json:"target_url"`
	FinalURL         string            `json:"final_url,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      time.Time         `json:"completed_at"`
	DurationSeconds  float64           `json:"duration_seconds"`
	URLsVisited      []string          `json:"urls_visited"`
	PagesScanned     int               `json:"pages_scanned"`
	Checks           []AuditCheck      `json:"checks"`
	KeywordTriggers  []KeywordTrigger  `json:"keyword_triggers"`
	EvidenceSnippets []EvidenceSnippet `json:"evidence_snippets"`
	Timeline         []TimelineEvent   `json:"timeline"`
}
