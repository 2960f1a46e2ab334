package analyzer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

// policyTypes are checked for every merchant, in a fixed report order.
var policyTypes = []pagegraph.PageType{
	pagegraph.PagePrivacyPolicy,
	pagegraph.PageTermsConditions,
	pagegraph.PageRefundPolicy,
	pagegraph.PageShippingDelivery,
	pagegraph.PageContact,
}

// policyKeywords are the terms a genuine policy page of each type mentions.
var policyKeywords = map[pagegraph.PageType][]string{
	pagegraph.PagePrivacyPolicy:    {"personal", "data", "information", "collect"},
	pagegraph.PageTermsConditions:  {"terms", "agreement", "liability"},
	pagegraph.PageRefundPolicy:     {"refund", "return", "days"},
	pagegraph.PageShippingDelivery: {"shipping", "delivery"},
	pagegraph.PageContact:          {"contact", "email", "phone", "address"},
}

const anchorValidateTimeout = 3 * time.Second

// PolicyDetector determines policy-page presence from the crawl graph with an
// anchor-link fallback.
type PolicyDetector struct {
	logger    *slog.Logger
	client    *http.Client
	userAgent string
}

// NewPolicyDetector creates a policy detector.
func NewPolicyDetector(client *http.Client, userAgent string, logger *slog.Logger) *PolicyDetector {
	return &PolicyDetector{
		logger:    logger.With("component", "policy_detector"),
		client:    client,
		userAgent: userAgent,
	}
}

// Detect checks each policy type. A crawled 200-status page of the type wins;
// otherwise a homepage anchor matching the type is validated with a single
// request. Expectations are filled in later by the scoring engine.
func (d *PolicyDetector) Detect(ctx context.Context, graph *pagegraph.Graph) []models.PolicyCheckResult {
	var home *pagegraph.PageArtifact
	if h, ok := graph.Home(); ok {
		home = h
	}

	results := make([]models.PolicyCheckResult, 0, len(policyTypes))
	for _, pt := range policyTypes {
		results = append(results, d.detectOne(ctx, graph, home, pt))
	}
	return results
}

func (d *PolicyDetector) detectOne(ctx context.Context, graph *pagegraph.Graph, home *pagegraph.PageArtifact, pt pagegraph.PageType) models.PolicyCheckResult {
	result := models.PolicyCheckResult{PolicyType: string(pt)}

	// Graph-first: a fetched page of this type is authoritative.
	if page, ok := graph.Get(pt); ok && page.OK() {
		result.Found = true
		result.URL = pageURL(page)
		result.ContentLength = len(page.VisibleText)
		result.HasRequiredKeywords = hasKeywords(page.VisibleText, policyKeywords[pt])
		result.Evidence = "page fetched during crawl"
		return result
	}

	// Anchor fallback: a homepage link classified as this type, validated
	// with one request.
	if home == nil {
		return result
	}
	for _, link := range home.Links {
		if strings.HasPrefix(link.URL, "javascript:") ||
			strings.HasPrefix(link.URL, "mailto:") ||
			strings.HasPrefix(link.URL, "tel:") {
			continue
		}
		cls := urlutil.Classify(link.URL, link.Text, "")
		if cls.Type != pt || cls.Confidence < 0.5 {
			continue
		}
		if d.validateURL(ctx, link.URL) {
			result.Found = true
			result.URL = urlutil.Normalize(link.URL)
			result.Evidence = "anchor link validated: " + link.Text
			return result
		}
		result.Evidence = "anchor link found but validation failed: " + link.URL
	}
	return result
}

// validateURL confirms an anchor-detected policy URL responds with 200.
func (d *PolicyDetector) validateURL(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, anchorValidateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("anchor validation failed", "url", rawURL, "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func hasKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	matches := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			matches++
		}
	}
	return matches >= 2
}

func pageURL(p *pagegraph.PageArtifact) string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.RequestedURL
}
