package scoring

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// Sub-score maxima. overall = technical + policy + trust.
const (
	maxTechnical = 30.0
	maxPolicy    = 40.0
	maxTrust     = 30.0

	sslPoints       = 15.0
	perPolicyPoints = 10.0

	// A present policy scores at least this much regardless of grading.
	policyFloorPoints  = 6.0
	policyLengthBonus  = 2.0
	policyKeywordBonus = 2.0

	// Visible text length that earns the policy length bonus.
	gradedPolicyLength = 500

	dummyTextPenalty = 10.0
)

// scoredPolicyTypes are the four policies that carry compliance points.
var scoredPolicyTypes = []string{
	string(pagegraph.PagePrivacyPolicy),
	string(pagegraph.PageTermsConditions),
	string(pagegraph.PageRefundPolicy),
	string(pagegraph.PageContact),
}

// categoryPenalties is the trust deduction per restricted category, applied
// once per category with risk-contributing hits.
var categoryPenalties = map[string]float64{
	"gambling":          15,
	"adult":             20,
	"child_pornography": 30,
	"weapons":           20,
	"drugs":             20,
	"illegal_goods":     20,
	"hacking":           15,
	"counterfeit":       15,
	"pharmacy":          10,
	"crypto":            5,
	"forex":             5,
	"securities":        5,
	"money_transfer":    5,
	"alcohol":           3,
	"tobacco":           3,
}

// ScoreInput carries every signal the compliance engine reads.
type ScoreInput struct {
	SSLValid       bool
	DomainAgeDays  int
	DomainAgeKnown bool
	Policies       []models.PolicyCheckResult
	Context        *models.BusinessContext
	ContentRisk    *models.ContentRiskResult
}

// Engine computes the 0-100 advisory compliance score.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a compliance scoring engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "compliance")}
}

// Score computes the breakdown. Policy expectations must already be applied
// via ApplyExpectations.
func (e *Engine) Score(in ScoreInput) *models.ComplianceBreakdown {
	b := &models.ComplianceBreakdown{}

	b.Technical = e.scoreTechnical(in, b)
	b.Policy = e.scorePolicy(in, b)
	b.Trust = e.scoreTrust(in, b)
	b.Overall = b.Technical + b.Policy + b.Trust

	switch {
	case b.Overall >= 80:
		b.Rating = models.RatingGood
	case b.Overall >= 50:
		b.Rating = models.RatingFair
	default:
		b.Rating = models.RatingPoor
	}

	e.logger.Debug("compliance scored",
		"overall", b.Overall,
		"technical", b.Technical,
		"policy", b.Policy,
		"trust", b.Trust,
		"rating", b.Rating,
	)
	return b
}

func (e *Engine) scoreTechnical(in ScoreInput, b *models.ComplianceBreakdown) float64 {
	score := 0.0

	if in.SSLValid {
		score += sslPoints
		b.Components = append(b.Components, models.ScoreComponent{
			Category: "technical", Name: "ssl", Points: sslPoints, Max: sslPoints,
			Reason: "site served over valid TLS",
		})
	} else {
		b.Components = append(b.Components, models.ScoreComponent{
			Category: "technical", Name: "ssl", Points: 0, Max: sslPoints,
			Reason: "TLS missing or invalid",
		})
	}

	agePoints, ageReason := domainAgePoints(in.DomainAgeDays, in.DomainAgeKnown)
	score += agePoints
	b.Components = append(b.Components, models.ScoreComponent{
		Category: "technical", Name: "domain_age", Points: agePoints, Max: sslPoints,
		Reason: ageReason,
	})
	return score
}

// domainAgePoints tiers registration age: <180d scores nothing, <365d scores
// 5, <1095d scores 10, older scores 15. Unknown age scores nothing.
func domainAgePoints(days int, known bool) (float64, string) {
	if !known {
		return 0, "domain age unknown"
	}
	switch {
	case days < 180:
		return 0, fmt.Sprintf("domain registered %d days ago", days)
	case days < 365:
		return 5, fmt.Sprintf("domain registered %d days ago", days)
	case days < 1095:
		return 10, fmt.Sprintf("domain registered %d days ago", days)
	default:
		return 15, fmt.Sprintf("domain registered %d days ago", days)
	}
}

func (e *Engine) scorePolicy(in ScoreInput, b *models.ComplianceBreakdown) float64 {
	byType := make(map[string]*models.PolicyCheckResult, len(in.Policies))
	for i := range in.Policies {
		byType[in.Policies[i].PolicyType] = &in.Policies[i]
	}

	score := 0.0
	for _, pt := range scoredPolicyTypes {
		check := byType[pt]
		points, reason := policyPoints(check)
		score += points
		comp := models.ScoreComponent{
			Category: "policy", Name: pt, Points: points, Max: perPolicyPoints,
			Reason: reason,
		}
		if check != nil {
			comp.EvidenceURL = check.URL
		}
		b.Components = append(b.Components, comp)
	}
	return score
}

func policyPoints(check *models.PolicyCheckResult) (float64, string) {
	if check == nil {
		return 0, "policy not checked"
	}
	if !check.Found {
		switch check.Expectation {
		case models.PolicyOptional:
			return perPolicyPoints, "not found but optional for this business context"
		case models.PolicyNotApplicable:
			return perPolicyPoints, "not applicable for this business context"
		default:
			return 0, "required policy not found"
		}
	}

	points := policyFloorPoints
	if check.ContentLength >= gradedPolicyLength {
		points += policyLengthBonus
	}
	if check.HasRequiredKeywords {
		points += policyKeywordBonus
	}
	if points > perPolicyPoints {
		points = perPolicyPoints
	}
	return points, "policy present"
}

func (e *Engine) scoreTrust(in ScoreInput, b *models.ComplianceBreakdown) float64 {
	score := maxTrust
	if in.ContentRisk == nil {
		return score
	}

	primary := models.BusinessUnknown
	if in.Context != nil {
		primary = in.Context.Primary
	}

	// One penalty per category; the first risk-contributing hit carries the
	// evidence. Prohibitive hits on policy pages never count.
	penalized := make(map[string]bool)
	for _, hit := range in.ContentRisk.RestrictedKeywordsFound {
		if penalized[hit.Category] {
			continue
		}
		if hit.Intent == models.IntentProhibitive && pagegraph.IsPolicyPage(pagegraph.PageType(hit.PageType)) {
			continue
		}
		penalty, reason := categoryPenalty(hit.Category, primary)
		penalized[hit.Category] = true
		if penalty == 0 {
			b.Components = append(b.Components, models.ScoreComponent{
				Category: "trust", Name: "content_" + hit.Category, Points: 0, Max: 0,
				Reason:          reason,
				SignalReference: hit.Keyword,
				EvidenceURL:     hit.PageURL,
				EvidenceSnippet: hit.Snippet,
			})
			continue
		}
		score -= penalty
		b.Components = append(b.Components, models.ScoreComponent{
			Category: "trust", Name: "content_" + hit.Category, Points: -penalty, Max: 0,
			Reason:          reason,
			SignalReference: hit.Keyword,
			EvidenceURL:     hit.PageURL,
			EvidenceSnippet: hit.Snippet,
		})
	}

	if in.ContentRisk.DummyWordsDetected {
		score -= dummyTextPenalty
		comp := models.ScoreComponent{
			Category: "trust", Name: "placeholder_content", Points: -dummyTextPenalty, Max: 0,
			Reason: "placeholder text detected",
		}
		if len(in.ContentRisk.DummyTextHits) > 0 {
			comp.EvidenceURL = in.ContentRisk.DummyTextHits[0].PageURL
			comp.EvidenceSnippet = in.ContentRisk.DummyTextHits[0].Snippet
		}
		b.Components = append(b.Components, comp)
	}

	if score < 0 {
		score = 0
	}
	return score
}

// categoryPenalty returns the trust deduction for a category under the given
// business context. Financial categories are informational when the context
// legitimizes them.
func categoryPenalty(category string, primary models.BusinessType) (float64, string) {
	switch category {
	case "crypto":
		if primary == models.BusinessBlockchain || primary == models.BusinessFintech {
			return 0, "crypto terms expected for this business context"
		}
	case "forex", "securities", "money_transfer":
		if primary == models.BusinessFintech {
			return 0, strings.ReplaceAll(category, "_", " ") + " terms expected for fintech context"
		}
	}
	penalty, ok := categoryPenalties[category]
	if !ok {
		penalty = 2
	}
	return penalty, "restricted content: " + category
}

// ApplyExpectations sets each policy check's expectation from the inferred
// business context. UNDETERMINED contexts (no pages fetched, or a blocked
// homepage) leave everything optional so the absence of evidence does not
// over-penalize; a reachable site always keeps its full expectations.
func ApplyExpectations(policies []models.PolicyCheckResult, ctx *models.BusinessContext) {
	primary := models.BusinessUnknown
	status := models.ContextUndetermined
	if ctx != nil {
		primary = ctx.Primary
		status = ctx.Status
	}

	for i := range policies {
		policies[i].Expectation = expectationFor(policies[i].PolicyType, primary, status)
	}
}

func expectationFor(policyType string, primary models.BusinessType, status models.ContextStatus) models.PolicyExpectation {
	if status == models.ContextUndetermined {
		return models.PolicyOptional
	}

	switch policyType {
	case string(pagegraph.PageRefundPolicy):
		switch primary {
		case models.BusinessSaaS:
			return models.PolicyOptional
		case models.BusinessFintech, models.BusinessBlockchain:
			return models.PolicyNotApplicable
		case models.BusinessContent:
			return models.PolicyNotApplicable
		}
		return models.PolicyRequired
	case string(pagegraph.PageContact):
		switch primary {
		case models.BusinessBlockchain, models.BusinessContent:
			return models.PolicyOptional
		}
		return models.PolicyRequired
	case string(pagegraph.PageTermsConditions):
		if primary == models.BusinessContent {
			return models.PolicyOptional
		}
		return models.PolicyRequired
	case string(pagegraph.PageShippingDelivery):
		if primary == models.BusinessEcommerce || primary == models.BusinessMarketplace {
			return models.PolicyOptional
		}
		return models.PolicyNotApplicable
	default:
		return models.PolicyRequired
	}
}

// SSLValidFromGraph reports whether the crawl saw a working HTTPS origin:
// an https root with no SSL-classified fetch error.
func SSLValidFromGraph(graph *pagegraph.Graph, rootURL string) bool {
	if !strings.HasPrefix(rootURL, "https://") {
		return false
	}
	for _, crawlErr := range graph.Meta().Errors {
		if crawlErr.Kind == pagegraph.ErrKindSSL {
			return false
		}
	}
	home, ok := graph.Home()
	return ok && home.OK()
}
