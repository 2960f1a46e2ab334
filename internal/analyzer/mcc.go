package analyzer

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// mccEntry is one merchant category code with the phrases that evidence it.
type mccEntry struct {
	category    string
	subcategory string
	code        string
	keywords    []string
}

// mccCatalog is the hierarchical category -> subcategory -> code catalog used
// for classification. Keyword matching is whole-word and hyphen flexible.
var mccCatalog = []mccEntry{
	{"retail", "clothing and apparel", "5651", []string{"clothing", "apparel", "fashion", "t-shirt", "dress", "jeans", "outfit"}},
	{"retail", "electronics", "5732", []string{"electronics", "laptop", "smartphone", "headphones", "gadget", "camera"}},
	{"retail", "jewelry", "5944", []string{"jewelry", "jewellery", "necklace", "bracelet", "earrings", "gemstone"}},
	{"retail", "furniture and home", "5712", []string{"furniture", "sofa", "mattress", "home decor", "lighting"}},
	{"retail", "sporting goods", "5941", []string{"sporting goods", "fitness equipment", "bicycle", "outdoor gear"}},
	{"retail", "books and media", "5942", []string{"bookstore", "books", "audiobook", "paperback"}},
	{"retail", "cosmetics", "5977", []string{"cosmetics", "skincare", "makeup", "fragrance", "beauty products"}},
	{"food", "restaurants", "5812", []string{"restaurant", "menu", "reservation", "dine", "takeaway", "cuisine"}},
	{"food", "grocery", "5411", []string{"grocery", "supermarket", "fresh produce", "pantry"}},
	{"food", "catering", "5811", []string{"catering", "caterer", "event food"}},
	{"services", "software", "5734", []string{"software", "saas", "application", "platform", "api", "cloud"}},
	{"services", "consulting", "7392", []string{"consulting", "consultancy", "advisory services", "strategy"}},
	{"services", "marketing", "7311", []string{"marketing agency", "advertising", "seo", "branding", "campaigns"}},
	{"services", "education", "8299", []string{"courses", "training", "tutorial", "curriculum", "learning platform", "certification"}},
	{"services", "web hosting", "4816", []string{"web hosting", "domain registration", "vps", "dedicated server"}},
	{"travel", "accommodation", "7011", []string{"hotel", "booking", "accommodation", "resort", "guesthouse"}},
	{"travel", "travel agency", "4722", []string{"travel agency", "tour package", "itinerary", "flights and hotels"}},
	{"finance", "financial services", "6012", []string{"banking", "loans", "investment", "portfolio", "financial planning"}},
	{"finance", "insurance", "6300", []string{"insurance", "premium", "coverage", "policyholder", "claims"}},
	{"health", "medical services", "8011", []string{"clinic", "medical", "doctor", "appointment", "patient", "treatment"}},
	{"health", "fitness and wellness", "7298", []string{"gym", "yoga", "wellness", "personal trainer", "massage"}},
	{"digital", "digital goods", "5815", []string{"digital download", "ebook", "license key", "digital goods"}},
	{"digital", "games", "5816", []string{"video game", "gaming", "in-game", "game store"}},
}

const (
	mccConfidencePerHit    = 15.0
	mccConfidenceThreshold = 30.0
	mccMaxSecondary        = 3
)

// MCCClassifier assigns merchant category codes from page text evidence.
type MCCClassifier struct {
	logger *slog.Logger
}

// NewMCCClassifier creates an MCC classifier.
func NewMCCClassifier(logger *slog.Logger) *MCCClassifier {
	return &MCCClassifier{logger: logger.With("component", "mcc_classifier")}
}

// Classify counts keyword evidence for every catalog entry across the fetched
// pages. Confidence scales with the raw hit count and the result is flagged
// low confidence when the best candidate stays under the threshold.
func (c *MCCClassifier) Classify(graph *pagegraph.Graph) *models.MCCResult {
	result := &models.MCCResult{LowConfidence: true}

	pages := graph.FetchedPages()
	if len(pages) == 0 {
		return result
	}

	type tally struct {
		score int
		pages map[string]bool
	}
	tallies := make(map[int]*tally)

	for _, page := range pages {
		lower := strings.ToLower(page.VisibleText)
		pageURL := page.FinalURL
		if pageURL == "" {
			pageURL = page.RequestedURL
		}
		for i, entry := range mccCatalog {
			hits := 0
			for _, kw := range entry.keywords {
				if matchKeyword(lower, kw) >= 0 {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			t := tallies[i]
			if t == nil {
				t = &tally{pages: make(map[string]bool)}
				tallies[i] = t
			}
			t.score += hits
			t.pages[pageURL] = true
		}
	}

	matches := make([]models.MCCMatch, 0, len(tallies))
	for i, t := range tallies {
		entry := mccCatalog[i]
		confidence := float64(t.score) * mccConfidencePerHit
		if confidence > 100 {
			confidence = 100
		}
		urls := make([]string, 0, len(t.pages))
		for u := range t.pages {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		matches = append(matches, models.MCCMatch{
			Category:    entry.category,
			Subcategory: entry.subcategory,
			Code:        entry.code,
			Score:       t.score,
			Confidence:  confidence,
			Pages:       urls,
		})
	}
	if len(matches) == 0 {
		return result
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Code < matches[j].Code
	})

	result.Primary = &matches[0]
	if len(matches) > 1 {
		end := min(len(matches), 1+mccMaxSecondary)
		result.Secondary = matches[1:end]
	}
	result.LowConfidence = matches[0].Confidence < mccConfidenceThreshold

	c.logger.Debug("mcc classification completed",
		"primary", matches[0].Code,
		"score", matches[0].Score,
		"low_confidence", result.LowConfidence,
	)
	return result
}
