package rules

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/scoring"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okPage(url string, pt pagegraph.PageType, text string) *pagegraph.PageArtifact {
	return &pagegraph.PageArtifact{
		RequestedURL: url,
		FinalURL:     url,
		Status:       200,
		Type:         pt,
		VisibleText:  text,
	}
}

func healthyGraph() *pagegraph.Graph {
	g := pagegraph.NewGraph()
	g.AddPage("https://acme.example/", okPage("https://acme.example/", pagegraph.PageHome,
		"Quality widgets for everyone. Contact us at hello@acme.example."))
	return g
}

func merchant() *models.MerchantInput {
	return &models.MerchantInput{
		MerchantLegalName:        "Acme Widgets Ltd",
		RegisteredAddress:        "42 Industrial Way, Springfield",
		DeclaredBusinessType:     "ecommerce",
		DeclaredProductsServices: []string{"widgets"},
		WebsiteURL:               "https://acme.example",
		MerchantDisplayName:      "Acme",
	}
}

func foundPolicies() []models.PolicyCheckResult {
	var out []models.PolicyCheckResult
	for _, pt := range []pagegraph.PageType{
		pagegraph.PagePrivacyPolicy, pagegraph.PageTermsConditions,
		pagegraph.PageRefundPolicy, pagegraph.PageContact,
	} {
		out = append(out, models.PolicyCheckResult{
			PolicyType:  string(pt),
			Found:       true,
			Expectation: models.PolicyRequired,
		})
	}
	return out
}

func goodCompliance() *models.ComplianceBreakdown {
	return &models.ComplianceBreakdown{Overall: 85, Rating: models.RatingGood}
}

func ecommerceContext() *models.BusinessContext {
	return &models.BusinessContext{Primary: models.BusinessEcommerce, Status: models.ContextDetermined}
}

func cleanInput() Input {
	return Input{
		Graph:      healthyGraph(),
		Merchant:   merchant(),
		Policies:   foundPolicies(),
		Context:    ecommerceContext(),
		Compliance: goodCompliance(),
		Checkout: &models.CheckoutFlowResult{
			HasCTA: true, CTAClickable: true, CheckoutReachable: true, PricingVisible: true,
		},
	}
}

func hasCode(out Outcome, code string) bool {
	for _, rc := range out.ReasonCodes {
		if rc.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// Clean pass
// =============================================================================

func TestCleanSitePasses(t *testing.T) {
	e := NewEngine(testLogger())
	out := e.Evaluate(cleanInput())

	if out.Decision != models.DecisionPass {
		t.Fatalf("decision = %v, reasons = %+v, want PASS", out.Decision, out.ReasonCodes)
	}
	if out.Confidence != 0.85 {
		t.Errorf("confidence = %.2f, want 0.85 from compliance", out.Confidence)
	}
	if out.Summary != "all checks passed" {
		t.Errorf("summary = %q", out.Summary)
	}
}

// =============================================================================
// Phase 1: accessibility
// =============================================================================

func TestUnreachableSiteFails(t *testing.T) {
	tests := []struct {
		kind pagegraph.ErrorKind
		code string
	}{
		{pagegraph.ErrKindDNS, CodeDNSFail},
		{pagegraph.ErrKindSSL, CodeSSLError},
		{pagegraph.ErrKindTimeout, CodeSiteUnreachable},
		{pagegraph.ErrKindHTTPError, CodeSiteUnreachable},
	}
	for _, tt := range tests {
		g := pagegraph.NewGraph()
		home := okPage("https://down.example/", pagegraph.PageHome, "")
		home.Status = 0
		home.Error = &pagegraph.CrawlError{Kind: tt.kind, URL: home.RequestedURL}
		g.AddPage(home.RequestedURL, home)

		in := cleanInput()
		in.Graph = g
		out := NewEngine(testLogger()).Evaluate(in)

		if out.Decision != models.DecisionFail {
			t.Errorf("%s: decision = %v, want FAIL", tt.kind, out.Decision)
		}
		if !hasCode(out, tt.code) {
			t.Errorf("%s: missing code %s, got %+v", tt.kind, tt.code, out.ReasonCodes)
		}
		if out.Confidence != 0.95 {
			t.Errorf("%s: confidence = %.2f, want 0.95", tt.kind, out.Confidence)
		}
	}
}

func TestParkedDomainFails(t *testing.T) {
	g := pagegraph.NewGraph()
	g.AddPage("https://parked.example/", okPage("https://parked.example/", pagegraph.PageHome,
		"This domain is for sale. Related searches: widgets, tools."))

	in := cleanInput()
	in.Graph = g
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeParkedDomain) {
		t.Errorf("missing PARKED_DOMAIN, got %+v", out.ReasonCodes)
	}
	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL", out.Decision)
	}
}

func TestDomainTooNewEscalates(t *testing.T) {
	in := cleanInput()
	in.DomainAgeKnown = true
	in.DomainAgeDays = 30
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionEscalate {
		t.Errorf("decision = %v, want ESCALATE", out.Decision)
	}
	if !hasCode(out, CodeDomainTooNew) {
		t.Errorf("missing DOMAIN_TOO_NEW, got %+v", out.ReasonCodes)
	}
}

// =============================================================================
// Phase 2: policies
// =============================================================================

func TestMissingPrivacyPolicyFails(t *testing.T) {
	in := cleanInput()
	in.Policies[0].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL", out.Decision)
	}
	if !hasCode(out, CodeMissingPrivacy) {
		t.Errorf("missing MISSING_PRIVACY_POLICY, got %+v", out.ReasonCodes)
	}
}

func TestMissingPrivacyFailsOnMarkerlessSite(t *testing.T) {
	// A reachable site whose context scored no markers still owes the
	// mandatory policies: expectations flow from the low-confidence context,
	// not from UNDETERMINED leniency.
	ctx := &models.BusinessContext{Primary: models.BusinessUnknown, Status: models.ContextLowConfidence}
	policies := []models.PolicyCheckResult{
		{PolicyType: string(pagegraph.PagePrivacyPolicy), Found: false},
		{PolicyType: string(pagegraph.PageTermsConditions), Found: true},
		{PolicyType: string(pagegraph.PageContact), Found: true},
	}
	scoring.ApplyExpectations(policies, ctx)

	in := cleanInput()
	in.Context = ctx
	in.Policies = policies
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL", out.Decision)
	}
	if !hasCode(out, CodeMissingPrivacy) {
		t.Errorf("missing MISSING_PRIVACY_POLICY, got %+v", out.ReasonCodes)
	}
	if hasCode(out, CodeMissingTerms) {
		t.Errorf("MISSING_TERMS must not fire when terms were found, got %+v", out.ReasonCodes)
	}
}

func TestMissingRefundEcommerceEscalates(t *testing.T) {
	in := cleanInput()
	in.Policies[2].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionEscalate {
		t.Errorf("decision = %v, want ESCALATE", out.Decision)
	}
	if !hasCode(out, CodeMissingRefundPolicy) {
		t.Errorf("missing MISSING_REFUND_POLICY, got %+v", out.ReasonCodes)
	}
}

func TestMissingRefundSaaSIgnored(t *testing.T) {
	in := cleanInput()
	in.Policies[2].Found = false
	in.Context = &models.BusinessContext{Primary: models.BusinessSaaS, Status: models.ContextDetermined}
	out := NewEngine(testLogger()).Evaluate(in)

	if hasCode(out, CodeMissingRefundPolicy) {
		t.Errorf("MISSING_REFUND_POLICY fired for SaaS context: %+v", out.ReasonCodes)
	}
}

// =============================================================================
// Phase 3: content risk
// =============================================================================

func TestHighRiskContentFails(t *testing.T) {
	in := cleanInput()
	in.ContentRisk = &models.ContentRiskResult{
		RestrictedKeywordsFound: []models.RestrictedKeywordHit{
			{Category: "gambling", Keyword: "casino", PageURL: "https://acme.example/",
				PageType: string(pagegraph.PageHome), Intent: models.IntentPromotional, Corroborated: true},
		},
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL", out.Decision)
	}
	if !hasCode(out, "HIGH_RISK_CONTENT_gambling") {
		t.Errorf("missing HIGH_RISK_CONTENT_gambling, got %+v", out.ReasonCodes)
	}
}

func TestProhibitivePolicyMentionDoesNotFail(t *testing.T) {
	in := cleanInput()
	in.ContentRisk = &models.ContentRiskResult{
		RestrictedKeywordsFound: []models.RestrictedKeywordHit{
			{Category: "gambling", Keyword: "gambling", PageURL: "https://acme.example/terms",
				PageType: string(pagegraph.PageTermsConditions), Intent: models.IntentProhibitive},
		},
		PolicyMentionsCount: 1,
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionPass {
		t.Errorf("decision = %v, want PASS for a prohibitive policy mention", out.Decision)
	}
}

func TestLowRiskCategoryEscalatesAsMediumRisk(t *testing.T) {
	in := cleanInput()
	in.ContentRisk = &models.ContentRiskResult{
		RestrictedKeywordsFound: []models.RestrictedKeywordHit{
			{Category: "pharmacy", Keyword: "online pharmacy", PageURL: "https://acme.example/",
				PageType: string(pagegraph.PageHome), Intent: models.IntentNeutral},
		},
		RiskContributingCount: 1,
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionEscalate {
		t.Errorf("decision = %v, want ESCALATE", out.Decision)
	}
	if !hasCode(out, CodeMediumRiskContent) {
		t.Errorf("missing MEDIUM_RISK_CONTENT, got %+v", out.ReasonCodes)
	}
}

func TestPlaceholderContentEscalates(t *testing.T) {
	in := cleanInput()
	in.ContentRisk = &models.ContentRiskResult{
		DummyWordsDetected: true,
		DummyTextHits:      []models.DummyTextHit{{PageURL: "https://acme.example/", Snippet: "lorem ipsum"}},
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodePlaceholderContent) {
		t.Errorf("missing PLACEHOLDER_CONTENT, got %+v", out.ReasonCodes)
	}
}

// =============================================================================
// Phase 4: checkout
// =============================================================================

func TestDeadCTAsOnlyFails(t *testing.T) {
	in := cleanInput()
	in.Checkout = &models.CheckoutFlowResult{
		HasCTA:         true,
		PricingVisible: true,
		DeadCTAs: []models.DeadCTA{
			{Text: "Buy now", Reason: "click timeout"},
			{Text: "Add to cart", Reason: "element detached"},
		},
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL", out.Decision)
	}
	if !hasCode(out, CodeDeadCTAsOnly) {
		t.Errorf("missing DEAD_CTAS_ONLY, got %+v", out.ReasonCodes)
	}
	if !hasCode(out, CodeFakePricing) {
		t.Errorf("missing FAKE_PRICING alongside visible pricing, got %+v", out.ReasonCodes)
	}
}

func TestNoCheckoutFlowEscalates(t *testing.T) {
	in := cleanInput()
	in.Checkout = &models.CheckoutFlowResult{PricingVisible: true}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeNoCheckoutFlow) {
		t.Errorf("missing NO_CHECKOUT_FLOW, got %+v", out.ReasonCodes)
	}
}

func TestCheckoutIncompleteEscalates(t *testing.T) {
	in := cleanInput()
	in.Checkout = &models.CheckoutFlowResult{
		HasCTA: true, CTAClickable: true, PricingVisible: true,
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeCheckoutIncomplete) {
		t.Errorf("missing CHECKOUT_INCOMPLETE, got %+v", out.ReasonCodes)
	}
}

func TestMissingPricingEscalates(t *testing.T) {
	in := cleanInput()
	in.Checkout.PricingVisible = false
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeMissingPricing) {
		t.Errorf("missing MISSING_PRICING, got %+v", out.ReasonCodes)
	}
}

func TestCheckoutRulesSkippedForContentContext(t *testing.T) {
	in := cleanInput()
	in.Context = &models.BusinessContext{Primary: models.BusinessContent, Status: models.ContextDetermined}
	in.Checkout = &models.CheckoutFlowResult{}
	out := NewEngine(testLogger()).Evaluate(in)

	for _, code := range []string{CodeNoCheckoutFlow, CodeMissingPricing, CodeDeadCTAsOnly} {
		if hasCode(out, code) {
			t.Errorf("checkout rule %s fired for content context", code)
		}
	}
}

// =============================================================================
// Phase 5: entity
// =============================================================================

func TestEntityMismatchEscalates(t *testing.T) {
	in := cleanInput()
	in.Entity = &models.EntityMatchResult{
		DeclaredName: "Acme Widgets Ltd",
		BestMatch:    "Different Trading Co",
		MatchScore:   20,
		MatchStatus:  models.MatchStatusMismatch,
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeLegalEntityMismatch) {
		t.Errorf("missing LEGAL_ENTITY_MISMATCH, got %+v", out.ReasonCodes)
	}
}

func TestAddressMismatchEscalates(t *testing.T) {
	mismatch := false
	in := cleanInput()
	in.Entity = &models.EntityMatchResult{
		MatchStatus:  models.MatchStatusMatch,
		AddressMatch: &mismatch,
	}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeAddressMismatch) {
		t.Errorf("missing ADDRESS_MISMATCH, got %+v", out.ReasonCodes)
	}
}

// =============================================================================
// Phase 6: product and business type
// =============================================================================

func TestProductMatchStatuses(t *testing.T) {
	e := NewEngine(testLogger())

	in := cleanInput()
	out := e.Evaluate(in)
	if out.ProductMatchStatus != models.MatchStatusMatch {
		t.Errorf("status = %v, want MATCH for widgets on a widget site", out.ProductMatchStatus)
	}

	in = cleanInput()
	in.Merchant.DeclaredProductsServices = []string{"industrial solvents"}
	out = e.Evaluate(in)
	if out.ProductMatchStatus != models.MatchStatusMismatch {
		t.Errorf("status = %v, want MISMATCH", out.ProductMatchStatus)
	}
	if !hasCode(out, CodeProductMismatch) {
		t.Errorf("missing PRODUCT_MISMATCH, got %+v", out.ReasonCodes)
	}

	in = cleanInput()
	in.Merchant.DeclaredProductsServices = []string{"widgets", "industrial solvents"}
	out = e.Evaluate(in)
	if out.ProductMatchStatus != models.MatchStatusPartialMatch {
		t.Errorf("status = %v, want PARTIAL_MATCH", out.ProductMatchStatus)
	}
}

func TestBusinessTypeMismatchEscalates(t *testing.T) {
	in := cleanInput()
	in.Merchant.DeclaredBusinessType = "ecommerce retail"
	in.Context = &models.BusinessContext{Primary: models.BusinessBlockchain, Status: models.ContextDetermined}
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeBusinessTypeMismatch) {
		t.Errorf("missing BUSINESS_TYPE_MISMATCH, got %+v", out.ReasonCodes)
	}
}

func TestBusinessTypeNotContradictedWhenLowConfidence(t *testing.T) {
	in := cleanInput()
	in.Merchant.DeclaredBusinessType = "ecommerce"
	in.Context = &models.BusinessContext{Primary: models.BusinessBlockchain, Status: models.ContextLowConfidence}
	out := NewEngine(testLogger()).Evaluate(in)

	if hasCode(out, CodeBusinessTypeMismatch) {
		t.Error("BUSINESS_TYPE_MISMATCH fired on a low-confidence inference")
	}
}

// =============================================================================
// Phase 7: contact
// =============================================================================

func TestNoContactMethodEscalates(t *testing.T) {
	g := pagegraph.NewGraph()
	g.AddPage("https://silent.example/", okPage("https://silent.example/", pagegraph.PageHome,
		"Quality widgets for everyone with no way to reach us"))

	in := cleanInput()
	in.Graph = g
	in.Policies[3].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if !hasCode(out, CodeNoContactMethod) {
		t.Errorf("missing NO_CONTACT_METHOD, got %+v", out.ReasonCodes)
	}
}

func TestEmailOnPageSatisfiesContact(t *testing.T) {
	in := cleanInput()
	in.Policies[3].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if hasCode(out, CodeNoContactMethod) {
		t.Error("NO_CONTACT_METHOD fired despite an email address on the homepage")
	}
}

// =============================================================================
// Decision invariants
// =============================================================================

func TestFailDominatesEscalate(t *testing.T) {
	in := cleanInput()
	in.Policies[0].Found = false
	in.Policies[2].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL to dominate", out.Decision)
	}
	if !hasCode(out, CodeMissingPrivacy) || !hasCode(out, CodeMissingRefundPolicy) {
		t.Errorf("both reason codes must be recorded, got %+v", out.ReasonCodes)
	}
}

func TestPoorComplianceBlocksPass(t *testing.T) {
	in := cleanInput()
	in.Compliance = &models.ComplianceBreakdown{Overall: 40, Rating: models.RatingPoor}
	out := NewEngine(testLogger()).Evaluate(in)

	if out.Decision != models.DecisionEscalate {
		t.Errorf("decision = %v, want ESCALATE when compliance is Poor", out.Decision)
	}
	if !hasCode(out, CodeLowComplianceScore) {
		t.Errorf("missing LOW_COMPLIANCE_SCORE, got %+v", out.ReasonCodes)
	}
}

func TestSummaryCountsExtraIssues(t *testing.T) {
	in := cleanInput()
	in.Policies[0].Found = false
	in.Policies[1].Found = false
	out := NewEngine(testLogger()).Evaluate(in)

	if !strings.Contains(out.Summary, "1 more issue") {
		t.Errorf("summary = %q, want extra issue count", out.Summary)
	}
}
