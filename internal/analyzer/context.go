package analyzer

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// contextEvidence maps each business type to weighted text markers. A marker's
// weight is added once per page it appears on.
var contextEvidence = map[models.BusinessType][]weightedMarker{
	models.BusinessEcommerce: {
		{"add to cart", 2.0}, {"shopping cart", 2.0}, {"checkout", 1.5},
		{"free shipping", 1.0}, {"in stock", 1.0}, {"buy now", 1.0},
		{"product catalog", 1.0}, {"returns accepted", 0.5},
	},
	models.BusinessMarketplace: {
		{"sell on", 2.0}, {"become a seller", 2.0}, {"vendor", 1.0},
		{"marketplace", 1.5}, {"list your", 1.0}, {"commission", 0.5},
	},
	models.BusinessSaaS: {
		{"free trial", 2.0}, {"pricing plans", 1.5}, {"per month", 1.0},
		{"subscription", 1.0}, {"dashboard", 1.0}, {"sign up", 0.5},
		{"integrations", 1.0}, {"start for free", 1.5},
	},
	models.BusinessFintech: {
		{"payment processing", 2.0}, {"payment gateway", 2.0}, {"payouts", 1.0},
		{"card issuing", 1.5}, {"banking as a service", 2.0}, {"settlement", 1.0},
		{"pci dss", 1.0}, {"merchant account", 1.0},
	},
	models.BusinessBlockchain: {
		{"blockchain", 1.5}, {"smart contract", 2.0}, {"on-chain", 1.5},
		{"validator", 1.0}, {"mainnet", 1.5}, {"web3", 1.5}, {"wallet connect", 1.0},
	},
	models.BusinessContent: {
		{"latest articles", 1.5}, {"subscribe to our newsletter", 1.0},
		{"read more", 0.5}, {"editorial", 1.0}, {"published on", 1.0},
		{"watch now", 1.0}, {"episodes", 1.0},
	},
	models.BusinessDevPlatform: {
		{"api reference", 2.0}, {"api documentation", 2.0}, {"sdk", 1.5},
		{"developer portal", 2.0}, {"api key", 1.0}, {"webhooks", 1.0},
		{"rate limits", 1.0}, {"code samples", 1.0},
	},
}

type weightedMarker struct {
	phrase string
	weight float64
}

const (
	contextMinScore = 3.0 // below this the primary type is low confidence
	contextMinGap   = 1.0 // lead over the runner-up required for full confidence
)

// ContextAnalyzer infers the merchant's business model from crawled evidence.
type ContextAnalyzer struct {
	logger *slog.Logger
}

// NewContextAnalyzer creates a business context analyzer.
func NewContextAnalyzer(logger *slog.Logger) *ContextAnalyzer {
	return &ContextAnalyzer{logger: logger.With("component", "business_context")}
}

// Infer scores every business type against the fetched pages. The result is
// UNDETERMINED only when no pages were fetched or the homepage was blocked;
// a reachable site with thin, ambiguous, or absent markers is LOW_CONFIDENCE.
func (c *ContextAnalyzer) Infer(graph *pagegraph.Graph) *models.BusinessContext {
	result := &models.BusinessContext{
		Primary:         models.BusinessUnknown,
		Status:          models.ContextUndetermined,
		FrontendSurface: models.SurfaceUnknown,
	}

	pages := graph.FetchedPages()
	home, hasHome := graph.Home()
	if len(pages) == 0 || !hasHome || !home.OK() {
		// A blocked or unreachable homepage leaves nothing trustworthy to
		// classify from.
		if hasHome && home.Status == 403 {
			result.FrontendSurface = models.SurfaceAuthGated
		}
		return result
	}

	scores := make(map[models.BusinessType]float64)
	for _, page := range pages {
		lower := strings.ToLower(page.VisibleText)
		for bt, markers := range contextEvidence {
			for _, m := range markers {
				if strings.Contains(lower, m.phrase) {
					scores[bt] += m.weight
				}
			}
		}
	}

	ranked := rankScores(scores)
	if len(ranked) == 0 {
		// The site was reachable, it just carries no markers. Keeping this
		// distinct from UNDETERMINED preserves the full policy expectations.
		result.Status = models.ContextLowConfidence
		result.FrontendSurface = deriveSurface(graph, models.BusinessUnknown)
		return result
	}

	top := ranked[0]
	result.Primary = top.Type
	result.Confidence = top.Score
	result.Status = models.ContextDetermined
	if len(ranked) > 1 {
		result.Alternatives = ranked[1:min(len(ranked), 4)]
	}

	gap := top.Score
	if len(ranked) > 1 {
		gap = top.Score - ranked[1].Score
	}
	if top.Score <= contextMinScore || gap < contextMinGap {
		result.Status = models.ContextLowConfidence
	}

	result.FrontendSurface = deriveSurface(graph, top.Type)

	c.logger.Debug("business context inferred",
		"primary", result.Primary,
		"status", result.Status,
		"score", top.Score,
		"surface", result.FrontendSurface,
	)
	return result
}

func rankScores(scores map[models.BusinessType]float64) []models.ContextAlternative {
	out := make([]models.ContextAlternative, 0, len(scores))
	for bt, s := range scores {
		out = append(out, models.ContextAlternative{Type: bt, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// deriveSurface maps the page mix and inferred type to a frontend surface.
func deriveSurface(graph *pagegraph.Graph, primary models.BusinessType) models.FrontendSurface {
	switch primary {
	case models.BusinessEcommerce, models.BusinessMarketplace:
		return models.SurfaceFullCommerce
	case models.BusinessDevPlatform:
		return models.SurfaceAPIDocs
	case models.BusinessContent:
		return models.SurfaceContentOnly
	}

	if graph.Has(pagegraph.PagePricing, 0) || graph.Has(pagegraph.PageProduct, 0) {
		return models.SurfaceMarketingSite
	}
	if home, ok := graph.Home(); ok && home.OK() {
		lower := strings.ToLower(home.VisibleText)
		if strings.Contains(lower, "log in") || strings.Contains(lower, "sign in") {
			return models.SurfaceMarketingSite
		}
	}
	return models.SurfaceUnknown
}
