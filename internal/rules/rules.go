// Package rules turns screening signals into the final PASS, FAIL, or
// ESCALATE decision. Evaluation is deterministic: seven fixed phases, fixed
// rule order within each phase, every triggered rule recorded.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// FAIL codes.
const (
	CodeSiteUnreachable = "SITE_UNREACHABLE"
	CodeDNSFail         = "DNS_FAIL"
	CodeSSLError        = "SSL_ERROR"
	CodeParkedDomain    = "PARKED_DOMAIN"
	CodeMissingPrivacy  = "MISSING_PRIVACY_POLICY"
	CodeMissingTerms    = "MISSING_TERMS"
	CodeDeadCTAsOnly    = "DEAD_CTAS_ONLY"
	CodeFakePricing     = "FAKE_PRICING"
)

// ESCALATE codes.
const (
	CodeProductMismatch      = "PRODUCT_MISMATCH"
	CodeNoCheckoutFlow       = "NO_CHECKOUT_FLOW"
	CodeCheckoutIncomplete   = "CHECKOUT_INCOMPLETE"
	CodeMissingPricing       = "MISSING_PRICING"
	CodeNoContactMethod      = "NO_CONTACT_METHOD"
	CodeLegalEntityMismatch  = "LEGAL_ENTITY_MISMATCH"
	CodePartialEntityMatch   = "PARTIAL_ENTITY_MATCH"
	CodeAddressMismatch      = "ADDRESS_MISMATCH"
	CodeMediumRiskContent    = "MEDIUM_RISK_CONTENT"
	CodeMissingRefundPolicy  = "MISSING_REFUND_POLICY"
	CodeDomainTooNew         = "DOMAIN_TOO_NEW"
	CodePlaceholderContent   = "PLACEHOLDER_CONTENT"
	CodeBusinessTypeMismatch = "BUSINESS_TYPE_MISMATCH"
	CodeLowComplianceScore   = "LOW_COMPLIANCE_SCORE"
)

const (
	failConfidence     = 0.95
	escalateConfidence = 0.75

	// A PASS decision requires at least a Fair compliance rating.
	minPassCompliance = 50.0

	domainTooNewDays = 180
)

// highRiskContentCodes maps restricted categories to their FAIL code suffix.
var highRiskContentCodes = map[string]string{
	"gambling":          "gambling",
	"adult":             "adult",
	"child_pornography": "illegal",
	"illegal_goods":     "illegal",
	"hacking":           "illegal",
	"counterfeit":       "illegal",
	"weapons":           "weapons",
	"drugs":             "drugs",
}

var (
	parkedTextRe = regexp.MustCompile(`(?i)(this domain (is|may be) for sale|buy this domain|domain parking|parked free|courtesy of godaddy|sedo domain parking|related searches)`)
	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe      = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// declaredTypeHints maps tokens in the declared business type to the inferred
// types they are compatible with.
var declaredTypeHints = []struct {
	token      string
	compatible []models.BusinessType
}{
	{"ecommerce", []models.BusinessType{models.BusinessEcommerce, models.BusinessMarketplace}},
	{"e-commerce", []models.BusinessType{models.BusinessEcommerce, models.BusinessMarketplace}},
	{"retail", []models.BusinessType{models.BusinessEcommerce, models.BusinessMarketplace}},
	{"marketplace", []models.BusinessType{models.BusinessMarketplace, models.BusinessEcommerce}},
	{"saas", []models.BusinessType{models.BusinessSaaS, models.BusinessDevPlatform}},
	{"software", []models.BusinessType{models.BusinessSaaS, models.BusinessDevPlatform}},
	{"blockchain", []models.BusinessType{models.BusinessBlockchain}},
	{"crypto", []models.BusinessType{models.BusinessBlockchain, models.BusinessFintech}},
	{"fintech", []models.BusinessType{models.BusinessFintech}},
	{"payment", []models.BusinessType{models.BusinessFintech}},
	{"media", []models.BusinessType{models.BusinessContent}},
	{"publishing", []models.BusinessType{models.BusinessContent}},
}

// Input carries every signal the rules engine evaluates.
type Input struct {
	Graph          *pagegraph.Graph
	Merchant       *models.MerchantInput
	Policies       []models.PolicyCheckResult
	ContentRisk    *models.ContentRiskResult
	Checkout       *models.CheckoutFlowResult
	Entity         *models.EntityMatchResult
	Context        *models.BusinessContext
	Compliance     *models.ComplianceBreakdown
	DomainAgeDays  int
	DomainAgeKnown bool
}

// Outcome is the decision with its full reasoning.
type Outcome struct {
	Decision           models.Decision
	Confidence         float64
	ReasonCodes        []models.ReasonCode
	Summary            string
	ProductMatchStatus models.MatchStatus
}

// Engine evaluates decision rules.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rules engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "rules")}
}

// Evaluate runs all seven phases and derives the decision. Deterministic
// rules always dominate probabilistic signals.
func (e *Engine) Evaluate(in Input) Outcome {
	var out Outcome

	e.phaseAccessibility(in, &out)
	e.phasePolicies(in, &out)
	e.phaseContentRisk(in, &out)
	e.phaseCheckout(in, &out)
	e.phaseEntity(in, &out)
	e.phaseProduct(in, &out)
	e.phaseContact(in, &out)

	out.Decision, out.Confidence = decide(out.ReasonCodes, in.Compliance)

	// A PASS with a Poor compliance rating violates the decision invariant;
	// escalate instead.
	if out.Decision == models.DecisionPass && in.Compliance != nil && in.Compliance.Overall < minPassCompliance {
		out.ReasonCodes = append(out.ReasonCodes, escalateCode(CodeLowComplianceScore, "compliance",
			fmt.Sprintf("compliance score %.0f below the pass threshold", in.Compliance.Overall)))
		out.Decision = models.DecisionEscalate
		out.Confidence = escalateConfidence
	}

	out.Summary = summarize(out.ReasonCodes)

	e.logger.Info("decision evaluated",
		"decision", out.Decision,
		"confidence", out.Confidence,
		"reason_codes", len(out.ReasonCodes),
	)
	return out
}

// Phase 1: site accessibility and domain signals.
func (e *Engine) phaseAccessibility(in Input, out *Outcome) {
	home, ok := in.Graph.Home()
	if !ok {
		out.add(failCode(CodeSiteUnreachable, "accessibility", "website could not be fetched"))
		return
	}

	if home.Error != nil {
		switch home.Error.Kind {
		case pagegraph.ErrKindDNS:
			out.add(failCode(CodeDNSFail, "accessibility", "domain name does not resolve"))
		case pagegraph.ErrKindSSL:
			out.add(failCode(CodeSSLError, "accessibility", "TLS handshake or certificate verification failed"))
		default:
			out.add(failCode(CodeSiteUnreachable, "accessibility",
				fmt.Sprintf("homepage fetch failed: %s", home.Error.Kind)))
		}
	} else if home.OK() && parkedTextRe.MatchString(home.VisibleText) {
		rc := failCode(CodeParkedDomain, "accessibility", "homepage shows domain parking content")
		rc.EvidenceURL = home.FinalURL
		out.add(rc)
	}

	if in.DomainAgeKnown && in.DomainAgeDays < domainTooNewDays {
		out.add(escalateCode(CodeDomainTooNew, "accessibility",
			fmt.Sprintf("domain registered %d days ago", in.DomainAgeDays)))
	}
}

// Phase 2: mandatory policies.
func (e *Engine) phasePolicies(in Input, out *Outcome) {
	for _, p := range in.Policies {
		if p.Found {
			continue
		}
		switch p.PolicyType {
		case string(pagegraph.PagePrivacyPolicy):
			if p.Expectation == models.PolicyRequired {
				out.add(failCode(CodeMissingPrivacy, "policy", "no privacy policy found"))
			}
		case string(pagegraph.PageTermsConditions):
			if p.Expectation == models.PolicyRequired {
				out.add(failCode(CodeMissingTerms, "policy", "no terms and conditions found"))
			}
		case string(pagegraph.PageRefundPolicy):
			if refundRequired(in.Context) {
				out.add(escalateCode(CodeMissingRefundPolicy, "policy", "no refund policy found for a commerce business"))
			}
		}
	}
}

// refundRequired applies only to e-commerce and unknown business contexts.
func refundRequired(ctx *models.BusinessContext) bool {
	if ctx == nil {
		return true
	}
	switch ctx.Primary {
	case models.BusinessEcommerce, models.BusinessMarketplace, models.BusinessUnknown:
		return true
	}
	return false
}

// Phase 3: content risk.
func (e *Engine) phaseContentRisk(in Input, out *Outcome) {
	if in.ContentRisk == nil {
		return
	}

	failedCategories := make(map[string]bool)
	var mediumHits []models.RestrictedKeywordHit

	for _, hit := range in.ContentRisk.RestrictedKeywordsFound {
		// Prohibitive mentions on policy pages are informational.
		if hit.Intent == models.IntentProhibitive && pagegraph.IsPolicyPage(pagegraph.PageType(hit.PageType)) {
			continue
		}

		suffix, highRisk := highRiskContentCodes[hit.Category]
		if highRisk && (hit.Corroborated || !pagegraph.IsPolicyPage(pagegraph.PageType(hit.PageType))) {
			if failedCategories[suffix] {
				continue
			}
			failedCategories[suffix] = true
			rc := failCode("HIGH_RISK_CONTENT_"+suffix, "content_risk",
				fmt.Sprintf("high-risk content detected: %s (%q)", hit.Category, hit.Keyword))
			rc.EvidenceURL = hit.PageURL
			rc.EvidenceSnippet = hit.Snippet
			out.add(rc)
			continue
		}
		mediumHits = append(mediumHits, hit)
	}

	if len(failedCategories) == 0 && len(mediumHits) > 0 {
		rc := escalateCode(CodeMediumRiskContent, "content_risk",
			fmt.Sprintf("restricted content requires review: %s (%q)", mediumHits[0].Category, mediumHits[0].Keyword))
		rc.EvidenceURL = mediumHits[0].PageURL
		rc.EvidenceSnippet = mediumHits[0].Snippet
		out.add(rc)
	}

	if in.ContentRisk.DummyWordsDetected {
		rc := escalateCode(CodePlaceholderContent, "content_risk", "placeholder text found on the site")
		if len(in.ContentRisk.DummyTextHits) > 0 {
			rc.EvidenceURL = in.ContentRisk.DummyTextHits[0].PageURL
			rc.EvidenceSnippet = in.ContentRisk.DummyTextHits[0].Snippet
		}
		out.add(rc)
	}
}

// Phase 4: checkout flow. Applies only to commercial contexts.
func (e *Engine) phaseCheckout(in Input, out *Outcome) {
	if in.Checkout == nil || !commercialContext(in.Context) {
		return
	}
	c := in.Checkout

	if c.HasCTA && !c.CTAClickable && len(c.DeadCTAs) > 0 && !c.CheckoutReachable {
		rc := failCode(CodeDeadCTAsOnly, "checkout",
			fmt.Sprintf("all %d probed purchase buttons were dead", len(c.DeadCTAs)))
		out.add(rc)
		if c.PricingVisible {
			out.add(failCode(CodeFakePricing, "checkout", "prices are shown but no purchase path works"))
		}
		return
	}

	switch {
	case !c.HasCTA && !c.CheckoutReachable:
		out.add(escalateCode(CodeNoCheckoutFlow, "checkout", "no purchase call-to-action or checkout flow found"))
	case c.CTAClickable && !c.CheckoutReachable:
		out.add(escalateCode(CodeCheckoutIncomplete, "checkout", "purchase buttons respond but never reach a checkout page"))
	}

	if !c.PricingVisible && storefrontContext(in.Context) {
		out.add(escalateCode(CodeMissingPricing, "checkout", "no visible pricing found"))
	}
}

func commercialContext(ctx *models.BusinessContext) bool {
	if ctx == nil {
		return true
	}
	return ctx.Primary != models.BusinessContent
}

func storefrontContext(ctx *models.BusinessContext) bool {
	if ctx == nil {
		return false
	}
	switch ctx.Primary {
	case models.BusinessEcommerce, models.BusinessMarketplace, models.BusinessSaaS:
		return true
	}
	return false
}

// Phase 5: legal entity.
func (e *Engine) phaseEntity(in Input, out *Outcome) {
	if in.Entity == nil {
		return
	}
	switch in.Entity.MatchStatus {
	case models.MatchStatusMismatch:
		out.add(escalateCode(CodeLegalEntityMismatch, "entity",
			fmt.Sprintf("site identifies as %q, declared legal name is %q", in.Entity.BestMatch, in.Entity.DeclaredName)))
	case models.MatchStatusPartialMatch:
		out.add(escalateCode(CodePartialEntityMatch, "entity",
			fmt.Sprintf("site name %q only partially matches declared name (score %.0f)", in.Entity.BestMatch, in.Entity.MatchScore)))
	}
	if in.Entity.AddressMatch != nil && !*in.Entity.AddressMatch {
		out.add(escalateCode(CodeAddressMismatch, "entity", "registered address not found on the site"))
	}
}

// Phase 6: declared products and business type.
func (e *Engine) phaseProduct(in Input, out *Outcome) {
	out.ProductMatchStatus = matchProducts(in.Graph, in.Merchant)
	if out.ProductMatchStatus == models.MatchStatusMismatch {
		out.add(escalateCode(CodeProductMismatch, "product",
			"declared products or services not found anywhere on the site"))
	}

	if mismatchedBusinessType(in.Merchant, in.Context) {
		out.add(escalateCode(CodeBusinessTypeMismatch, "product",
			fmt.Sprintf("declared business type %q conflicts with inferred type %s",
				in.Merchant.DeclaredBusinessType, in.Context.Primary)))
	}
}

// matchProducts checks how many declared product lines have token evidence in
// the site text.
func matchProducts(graph *pagegraph.Graph, merchant *models.MerchantInput) models.MatchStatus {
	if merchant == nil || len(merchant.DeclaredProductsServices) == 0 {
		return models.MatchStatusUnableToVerify
	}

	var sb strings.Builder
	for _, page := range graph.FetchedPages() {
		sb.WriteString(strings.ToLower(page.VisibleText))
		sb.WriteByte(' ')
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return models.MatchStatusUnableToVerify
	}

	matched := 0
	for _, product := range merchant.DeclaredProductsServices {
		if productMentioned(text, product) {
			matched++
		}
	}
	switch {
	case matched == len(merchant.DeclaredProductsServices):
		return models.MatchStatusMatch
	case matched > 0:
		return models.MatchStatusPartialMatch
	default:
		return models.MatchStatusMismatch
	}
}

// productMentioned looks for any significant token of the declared product in
// the combined site text.
func productMentioned(text, product string) bool {
	for _, token := range strings.Fields(strings.ToLower(product)) {
		if len(token) < 4 {
			continue
		}
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func mismatchedBusinessType(merchant *models.MerchantInput, ctx *models.BusinessContext) bool {
	if merchant == nil || ctx == nil || ctx.Status != models.ContextDetermined {
		return false
	}
	declared := strings.ToLower(merchant.DeclaredBusinessType)
	for _, hint := range declaredTypeHints {
		if !strings.Contains(declared, hint.token) {
			continue
		}
		for _, bt := range hint.compatible {
			if ctx.Primary == bt {
				return false
			}
		}
		return true
	}
	// Unrecognized declared types cannot be contradicted.
	return false
}

// Phase 7: contact method.
func (e *Engine) phaseContact(in Input, out *Outcome) {
	var contactExpected bool
	for _, p := range in.Policies {
		if p.PolicyType == string(pagegraph.PageContact) {
			if p.Found {
				return
			}
			contactExpected = p.Expectation == models.PolicyRequired
		}
	}
	if !contactExpected {
		return
	}

	for _, page := range in.Graph.FetchedPages() {
		if emailRe.MatchString(page.VisibleText) || phoneRe.MatchString(page.VisibleText) {
			return
		}
	}
	out.add(escalateCode(CodeNoContactMethod, "contact", "no contact page, email address, or phone number found"))
}

func decide(codes []models.ReasonCode, compliance *models.ComplianceBreakdown) (models.Decision, float64) {
	anyEscalate := false
	for _, rc := range codes {
		if rc.IsAutoFail {
			return models.DecisionFail, failConfidence
		}
		if rc.IsAutoEscalate {
			anyEscalate = true
		}
	}
	if anyEscalate {
		return models.DecisionEscalate, escalateConfidence
	}

	confidence := 0.5
	if compliance != nil {
		confidence = compliance.Overall / 100
	}
	return models.DecisionPass, confidence
}

func summarize(codes []models.ReasonCode) string {
	if len(codes) == 0 {
		return "all checks passed"
	}
	if len(codes) == 1 {
		return codes[0].Message
	}
	return fmt.Sprintf("%s (and %d more issue(s))", codes[0].Message, len(codes)-1)
}

func (o *Outcome) add(rc models.ReasonCode) {
	o.ReasonCodes = append(o.ReasonCodes, rc)
}

func failCode(code, category, message string) models.ReasonCode {
	return models.ReasonCode{
		Code:       code,
		Category:   category,
		Severity:   models.SeverityCritical,
		Message:    message,
		IsAutoFail: true,
	}
}

func escalateCode(code, category, message string) models.ReasonCode {
	return models.ReasonCode{
		Code:           code,
		Category:       category,
		Severity:       models.SeverityHigh,
		Message:        message,
		IsAutoEscalate: true,
	}
}
