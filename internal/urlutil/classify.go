package urlutil

import (
	"regexp"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// Classification is a probabilistic page-type assignment.
type Classification struct {
	Type       pagegraph.PageType
	Confidence float64
}

type urlPattern struct {
	re     *regexp.Regexp
	weight float64
}

type typePatterns struct {
	urls []urlPattern
	text []string
}

var skipExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".css", ".js", ".svg", ".ico", ".zip", ".mp4", ".webp"}

var skipSchemes = []string{"javascript:", "mailto:", "tel:"}

// contentURLPattern marks blog/news style URLs that must never be classified
// as a policy or about page, no matter how the anchor reads.
var contentURLPattern = regexp.MustCompile(`(?i)/(blog|news|press|articles?|posts?|stories|updates)(/|$)`)

var contentExcludedTypes = map[pagegraph.PageType]bool{
	pagegraph.PagePrivacyPolicy:    true,
	pagegraph.PageTermsConditions:  true,
	pagegraph.PageRefundPolicy:     true,
	pagegraph.PageShippingDelivery: true,
	pagegraph.PageFAQ:              true,
	pagegraph.PageAbout:            true,
}

func mustPatterns(pairs ...any) []urlPattern {
	var out []urlPattern
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, urlPattern{
			re:     regexp.MustCompile("(?i)" + pairs[i].(string)),
			weight: pairs[i+1].(float64),
		})
	}
	return out
}

var patternCatalog = map[pagegraph.PageType]typePatterns{
	pagegraph.PagePrivacyPolicy: {
		urls: mustPatterns(
			`/privacy[-_]?policy`, 0.95,
			`/privacy`, 0.85,
			`/legal/privacy`, 0.9,
			`/gdpr`, 0.6,
		),
		text: []string{"privacy policy", "privacy notice", "privacy statement", "privacy"},
	},
	pagegraph.PageTermsConditions: {
		urls: mustPatterns(
			`/terms[-_]?(and[-_]?)?conditions`, 0.95,
			`/terms[-_]?of[-_]?(service|use)`, 0.95,
			`/terms`, 0.85,
			`/legal/terms`, 0.9,
			`/tos\b`, 0.8,
			`/legal$`, 0.5,
		),
		text: []string{"terms and conditions", "terms of service", "terms of use", "terms", "legal"},
	},
	pagegraph.PageRefundPolicy: {
		urls: mustPatterns(
			`/refund[-_]?policy`, 0.95,
			`/(refunds?|returns?)(/|$)`, 0.85,
			`/return[-_]?policy`, 0.95,
			`/cancellation`, 0.7,
		),
		text: []string{"refund policy", "returns", "return policy", "refunds", "cancellation policy"},
	},
	pagegraph.PageShippingDelivery: {
		urls: mustPatterns(
			`/shipping`, 0.9,
			`/delivery`, 0.85,
			`/shipping[-_]?(policy|info)`, 0.95,
		),
		text: []string{"shipping", "delivery", "shipping policy", "shipping information"},
	},
	pagegraph.PageAbout: {
		urls: mustPatterns(
			`/about[-_]?us`, 0.95,
			`/about(/|$)`, 0.9,
			`/company`, 0.7,
			`/who[-_]?we[-_]?are`, 0.85,
			`/our[-_]?story`, 0.8,
			`/team$`, 0.5,
		),
		text: []string{"about us", "about", "our story", "who we are", "company"},
	},
	pagegraph.PageContact: {
		urls: mustPatterns(
			`/contact[-_]?us`, 0.95,
			`/contact(/|$)`, 0.9,
			`/support$`, 0.5,
			`/get[-_]?in[-_]?touch`, 0.85,
		),
		text: []string{"contact us", "contact", "get in touch", "reach us"},
	},
	pagegraph.PagePricing: {
		urls: mustPatterns(
			`/pricing`, 0.95,
			`/plans`, 0.8,
			`/price[-_]?list`, 0.85,
		),
		text: []string{"pricing", "plans", "plans and pricing"},
	},
	pagegraph.PageProduct: {
		urls: mustPatterns(
			`/products?(/|$)`, 0.85,
			`/shop(/|$)`, 0.8,
			`/store(/|$)`, 0.75,
			`/collections?(/|$)`, 0.7,
			`/catalog`, 0.7,
		),
		text: []string{"products", "shop", "store", "catalog", "collections"},
	},
	pagegraph.PageSolutions: {
		urls: mustPatterns(
			`/solutions?(/|$)`, 0.85,
			`/services?(/|$)`, 0.7,
			`/features`, 0.6,
		),
		text: []string{"solutions", "services", "features"},
	},
	pagegraph.PageFAQ: {
		urls: mustPatterns(
			`/faqs?(/|$)`, 0.95,
			`/help(/|$)`, 0.6,
			`/frequently[-_]?asked`, 0.9,
		),
		text: []string{"faq", "faqs", "frequently asked questions", "help center"},
	},
	pagegraph.PageDocs: {
		urls: mustPatterns(
			`/docs?(/|$)`, 0.85,
			`/documentation`, 0.9,
			`/developers?(/|$)`, 0.7,
			`/api[-_]?(docs|reference)`, 0.9,
		),
		text: []string{"docs", "documentation", "developers", "api reference"},
	},
	pagegraph.PageBlog: {
		urls: mustPatterns(
			`/blog(/|$)`, 0.9,
			`/news(/|$)`, 0.8,
			`/press(/|$)`, 0.7,
			`/articles?(/|$)`, 0.7,
		),
		text: []string{"blog", "news", "press", "articles"},
	},
}

// Classify assigns a page type and confidence to a URL, optionally informed
// by its anchor text and page title. The best URL pattern weight defines the
// base confidence; anchor and title matches add capped contributions.
func Classify(rawURL, anchorText, title string) Classification {
	lower := strings.ToLower(strings.TrimSpace(rawURL))

	for _, scheme := range skipSchemes {
		if strings.HasPrefix(lower, scheme) {
			return Classification{Type: pagegraph.PageSkip, Confidence: 1.0}
		}
	}
	pathOnly := lower
	if i := strings.IndexAny(pathOnly, "?#"); i >= 0 {
		pathOnly = pathOnly[:i]
	}
	for _, ext := range skipExtensions {
		if strings.HasSuffix(pathOnly, ext) {
			return Classification{Type: pagegraph.PageSkip, Confidence: 1.0}
		}
	}

	isContentURL := contentURLPattern.MatchString(lower)

	anchor := strings.ToLower(strings.TrimSpace(anchorText))
	titleLower := strings.ToLower(strings.TrimSpace(title))

	best := Classification{Type: pagegraph.PageOther, Confidence: 0}
	for pt, patterns := range patternCatalog {
		if isContentURL && contentExcludedTypes[pt] {
			continue
		}

		var score float64
		for _, up := range patterns.urls {
			if up.re.MatchString(lower) && up.weight > score {
				score = up.weight
			}
		}

		// Anchor contributes at most 0.3, title at most 0.2, regardless of
		// how many phrases of the type they match.
		var anchorBonus, titleBonus float64
		for _, phrase := range patterns.text {
			if anchor != "" && anchor == phrase {
				anchorBonus = maxf(anchorBonus, 0.3)
			} else if anchor != "" && strings.Contains(anchor, phrase) {
				anchorBonus = maxf(anchorBonus, 0.2)
			}
			if titleLower != "" && strings.Contains(titleLower, phrase) {
				titleBonus = 0.2
			}
		}
		textBonus := anchorBonus + titleBonus
		// Anchor/title alone may carry a weak classification.
		if score == 0 && textBonus > 0 {
			score = textBonus
		} else {
			score += textBonus
		}
		if score > 1.0 {
			score = 1.0
		}

		if score > best.Confidence {
			best = Classification{Type: pt, Confidence: score}
		}
	}

	if best.Confidence < 0.3 {
		return Classification{Type: pagegraph.PageOther, Confidence: best.Confidence}
	}
	return best
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
