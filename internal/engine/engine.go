// Package engine orchestrates one screening scan: crawl, parallel analyzers,
// checkout probe, compliance scoring, decision rules, and the audit trail.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/merchantsafe/kyc-screener/internal/analyzer"
	"github.com/merchantsafe/kyc-screener/internal/audit"
	"github.com/merchantsafe/kyc-screener/internal/checkout"
	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/crawler"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/rules"
	"github.com/merchantsafe/kyc-screener/internal/scoring"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

// entityMatchTimeout caps the entity matcher; past it the signal is
// surrendered rather than delaying the scan.
const entityMatchTimeout = 30 * time.Second

// ScanEngine runs complete screening scans. Construct one per process and
// inject it into handlers.
type ScanEngine struct {
	logger *slog.Logger
	cfg    *config.Config

	crawler  *crawler.Crawler
	content  *analyzer.ContentRiskAnalyzer
	policy   *analyzer.PolicyDetector
	entity   *analyzer.EntityMatcher
	context  *analyzer.ContextAnalyzer
	mcc      *analyzer.MCCClassifier
	checkout *checkout.Validator
	rdap     *scoring.RDAPClient
	scorer   *scoring.Engine
	rules    *rules.Engine
}

// New creates a scan engine. The page cache may be nil, which disables
// cross-scan page reuse.
func New(cfg *config.Config, cache *crawler.PageCache, logger *slog.Logger) *ScanEngine {
	httpClient := &http.Client{}
	return &ScanEngine{
		logger:   logger.With("component", "scan_engine"),
		cfg:      cfg,
		crawler:  crawler.New(cfg, cache, logger),
		content:  analyzer.NewContentRiskAnalyzer(logger),
		policy:   analyzer.NewPolicyDetector(httpClient, cfg.UserAgent, logger),
		entity:   analyzer.NewEntityMatcher(logger),
		context:  analyzer.NewContextAnalyzer(logger),
		mcc:      analyzer.NewMCCClassifier(logger),
		checkout: checkout.NewValidator(cfg, logger),
		rdap:     scoring.NewRDAPClient(cfg.RDAPTimeout, cfg.RDAPEnabled, logger),
		scorer:   scoring.NewEngine(logger),
		rules:    rules.NewEngine(logger),
	}
}

// Screen runs one scan and always returns a decision. Orchestrator panics
// degrade to an ESCALATE with confidence 0 and an explanatory audit trail;
// a scan never defaults to PASS on error.
func (e *ScanEngine) Screen(ctx context.Context, input *models.MerchantInput) (decision *models.KYCDecision) {
	scanID := ulid.Make().String()
	rootURL := urlutil.EnsureScheme(input.WebsiteURL)
	builder := audit.NewBuilder(scanID, rootURL)
	logger := e.logger.With("scan_id", scanID, "url", rootURL)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scan panicked", "panic", r)
			builder.AddEvent("scan_fatal", fmt.Sprintf("internal error: %v", r))
			decision = fatalDecision(builder)
		}
	}()

	logger.Info("scan started", "merchant", input.MerchantDisplayName)
	builder.AddEvent("scan_started", input.MerchantDisplayName)

	// Crawl. The graph always contains a homepage artifact.
	builder.AddEvent("crawl_started", "")
	graph := e.crawler.Crawl(ctx, rootURL)
	meta := graph.Meta()
	builder.AddEvent("crawl_completed", fmt.Sprintf("%d pages fetched, %d skipped", meta.PagesFetched, meta.PagesSkipped))

	var finalURL string
	if home, ok := graph.Home(); ok {
		finalURL = home.FinalURL
	}
	builder.SetCrawlSummary(finalURL, graph.URLs(), meta.PagesFetched)

	// Business context first: it gates the checkout probe.
	bizCtx := e.context.Infer(graph)
	builder.AddEvent("context_inferred", string(bizCtx.Primary))

	signals := e.runAnalyzers(ctx, graph, input, bizCtx, builder)

	scoring.ApplyExpectations(signals.policies, bizCtx)
	breakdown := e.scorer.Score(scoring.ScoreInput{
		SSLValid:       scoring.SSLValidFromGraph(graph, rootURL),
		DomainAgeDays:  signals.domainAgeDays,
		DomainAgeKnown: signals.domainAgeKnown,
		Policies:       signals.policies,
		Context:        bizCtx,
		ContentRisk:    signals.contentRisk,
	})
	builder.AddEvent("compliance_scored", fmt.Sprintf("%.0f (%s)", breakdown.Overall, breakdown.Rating))

	outcome := e.rules.Evaluate(rules.Input{
		Graph:          graph,
		Merchant:       input,
		Policies:       signals.policies,
		ContentRisk:    signals.contentRisk,
		Checkout:       signals.checkout,
		Entity:         signals.entity,
		Context:        bizCtx,
		Compliance:     breakdown,
		DomainAgeDays:  signals.domainAgeDays,
		DomainAgeKnown: signals.domainAgeKnown,
	})
	builder.AddEvent("decision", string(outcome.Decision))
	builder.AddEvent("scan_completed", input.MerchantDisplayName)

	recordAudit(builder, signals, outcome)

	logger.Info("scan completed",
		"decision", outcome.Decision,
		"confidence", outcome.Confidence,
		"compliance", breakdown.Overall,
	)

	return &models.KYCDecision{
		Decision:             outcome.Decision,
		ReasonCodes:          outcome.ReasonCodes,
		Summary:              outcome.Summary,
		Confidence:           outcome.Confidence,
		PolicyChecks:         signals.policies,
		CheckoutFlow:         signals.checkout,
		EntityMatch:          signals.entity,
		ComplianceScore:      breakdown,
		DetectedBusinessType: string(bizCtx.Primary),
		DetectedMCC:          signals.mcc,
		ProductMatchStatus:   outcome.ProductMatchStatus,
		ContentRiskSummary:   signals.contentRisk,
		AuditTrail:           builder.Build(),
		ScanVersion:          models.ScanVersion,
	}
}

// scanSignals collects the parallel analyzer outputs.
type scanSignals struct {
	contentRisk    *models.ContentRiskResult
	policies       []models.PolicyCheckResult
	entity         *models.EntityMatchResult
	mcc            *models.MCCResult
	checkout       *models.CheckoutFlowResult
	domainAgeDays  int
	domainAgeKnown bool
}

// runAnalyzers fans out the post-crawl analyzers. The checkout probe runs
// concurrently with them when the context is commercial; the entity matcher
// is surrendered after its timeout.
func (e *ScanEngine) runAnalyzers(ctx context.Context, graph *pagegraph.Graph, input *models.MerchantInput, bizCtx *models.BusinessContext, builder *audit.Builder) scanSignals {
	var (
		signals scanSignals
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		signals.contentRisk = e.content.Analyze(graph.Pages())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		signals.policies = e.policy.Detect(ctx, graph)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		signals.mcc = e.mcc.Classify(graph)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		signals.entity = e.matchEntityWithTimeout(ctx, graph, input, builder)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		host := urlutil.Host(urlutil.EnsureScheme(input.WebsiteURL))
		signals.domainAgeDays, signals.domainAgeKnown = e.rdap.DomainAgeDays(ctx, host)
	}()

	homeOK := false
	if home, ok := graph.Home(); ok && home.OK() {
		homeOK = true
	}
	if homeOK && bizCtx.Primary != models.BusinessContent {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rootURL := urlutil.EnsureScheme(input.WebsiteURL)
			signals.checkout = e.checkout.Validate(ctx, graph, rootURL)
		}()
	}

	wg.Wait()
	return signals
}

// matchEntityWithTimeout runs the entity matcher under its hard cap. On
// timeout the signal becomes nil rather than blocking the scan.
func (e *ScanEngine) matchEntityWithTimeout(ctx context.Context, graph *pagegraph.Graph, input *models.MerchantInput, builder *audit.Builder) *models.EntityMatchResult {
	done := make(chan *models.EntityMatchResult, 1)
	go func() {
		done <- e.entity.Match(graph, input.MerchantLegalName, input.RegisteredAddress)
	}()

	timer := time.NewTimer(entityMatchTimeout)
	defer timer.Stop()
	select {
	case result := <-done:
		return result
	case <-timer.C:
		builder.AddEvent("entity_match_timeout", "entity match surrendered after 30s")
		return nil
	case <-ctx.Done():
		return nil
	}
}

// recordAudit writes the analyzer outputs and decision reasoning into the
// trail.
func recordAudit(builder *audit.Builder, signals scanSignals, outcome rules.Outcome) {
	for _, p := range signals.policies {
		status := models.CheckFail
		detail := "not found"
		if p.Found {
			status = models.CheckPass
			detail = p.Evidence
		} else if p.Expectation != models.PolicyRequired {
			status = models.CheckInfo
		}
		builder.AddCheck("policy_"+p.PolicyType, status, detail, p.URL)
	}

	if signals.contentRisk != nil {
		for _, hit := range signals.contentRisk.RestrictedKeywordsFound {
			builder.AddKeywordTrigger(hit.Category, hit.Keyword, hit.PageURL, string(hit.Intent))
			builder.AddEvidence(hit.PageURL, hit.Snippet, "restricted_keyword")
		}
	}

	for _, rc := range outcome.ReasonCodes {
		status := models.CheckFlag
		if rc.IsAutoFail {
			status = models.CheckFail
		}
		builder.AddCheck(rc.Code, status, rc.Message, rc.EvidenceURL)
		if rc.EvidenceSnippet != "" {
			builder.AddEvidence(rc.EvidenceURL, rc.EvidenceSnippet, rc.Code)
		}
	}
}

// fatalDecision is the terminal result for an orchestrator failure.
func fatalDecision(builder *audit.Builder) *models.KYCDecision {
	return &models.KYCDecision{
		Decision:   models.DecisionEscalate,
		Confidence: 0,
		Summary:    "scan failed before producing signals, manual review required",
		ReasonCodes: []models.ReasonCode{{
			Code:           "SCAN_FATAL",
			Category:       "system",
			Severity:       models.SeverityHigh,
			Message:        "internal error during scan",
			IsAutoEscalate: true,
		}},
		AuditTrail:  builder.Build(),
		ScanVersion: models.ScanVersion,
	}
}
