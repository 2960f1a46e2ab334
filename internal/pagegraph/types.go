// Package pagegraph defines the normalized page graph produced by a crawl:
// page artifacts, page types, and the deduplicated collection downstream
// analyzers read from.
package pagegraph

import "time"

// PageType is the semantic label attached to a fetched URL.
type PageType string

const (
	PageHome             PageType = "home"
	PageAbout            PageType = "about"
	PageContact          PageType = "contact"
	PagePrivacyPolicy    PageType = "privacy_policy"
	PageTermsConditions  PageType = "terms_conditions"
	PageRefundPolicy     PageType = "refund_policy"
	PageShippingDelivery PageType = "shipping_delivery"
	PageFAQ              PageType = "faq"
	PageProduct          PageType = "product"
	PagePricing          PageType = "pricing"
	PageSolutions        PageType = "solutions"
	PageDocs             PageType = "docs"
	PageBlog             PageType = "blog"
	PageOther            PageType = "other"
	PageSkip             PageType = "skip"
)

// PolicyPageSet is the single authoritative set of policy page types used by
// both the scoring engine and the decision rules. Prohibitive keyword hits on
// these pages are informational and never contribute to risk.
var PolicyPageSet = map[PageType]bool{
	PagePrivacyPolicy:    true,
	PageTermsConditions:  true,
	PageRefundPolicy:     true,
	PageShippingDelivery: true,
	PageFAQ:              true,
}

// IsPolicyPage reports whether pt belongs to the authoritative policy set.
func IsPolicyPage(pt PageType) bool {
	return PolicyPageSet[pt]
}

// RequiredPageTypes must be present (confidence >= 0.7) before the crawl may
// exit early.
var RequiredPageTypes = []PageType{PagePrivacyPolicy, PageTermsConditions}

// HighValuePageTypes complete the early-exit condition: at least one of these
// must be present alongside all required types.
var HighValuePageTypes = []PageType{PageAbout, PageContact, PagePricing, PageProduct}

// Priority returns the queueing priority for a page type. Higher is fetched
// sooner.
func Priority(pt PageType) int {
	switch pt {
	case PageHome:
		return 100
	case PagePrivacyPolicy, PageTermsConditions:
		return 95
	case PageRefundPolicy:
		return 90
	case PageAbout:
		return 85
	case PageContact:
		return 80
	case PagePricing:
		return 75
	case PageProduct, PageSolutions:
		return 70
	case PageShippingDelivery:
		return 65
	case PageFAQ:
		return 50
	case PageDocs:
		return 40
	case PageBlog:
		return 20
	default:
		return 10
	}
}

// SourceTag records how an artifact entered the graph.
type SourceTag string

const (
	SourceRoot         SourceTag = "root"
	SourceSitemap      SourceTag = "sitemap"
	SourceNavPrimary   SourceTag = "nav_primary"
	SourceNavSecondary SourceTag = "nav_secondary"
	SourceCache        SourceTag = "cache"
	SourceMenu         SourceTag = "menu"
)

// RenderType records how a page's content was produced.
type RenderType string

const (
	RenderHTTP  RenderType = "http"
	RenderJS    RenderType = "js"
	RenderCache RenderType = "cache"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	ErrKindDNS       ErrorKind = "dns"
	ErrKindSSL       ErrorKind = "ssl"
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindBlocked   ErrorKind = "blocked"
	ErrKindHTTPError ErrorKind = "http_error"
	ErrKindParse     ErrorKind = "parse"
	ErrKindUnknown   ErrorKind = "unknown"
)

// CrawlError is a classified per-URL fetch failure.
type CrawlError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	URL     string    `json:"url"`
}

func (e *CrawlError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Link is a hyperlink extracted from a page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// PageArtifact represents one fetched page. Artifacts are never mutated after
// insertion into the graph.
type PageArtifact struct {
	RequestedURL string      `json:"requested_url"`
	FinalURL     string      `json:"final_url"`
	Status       int         `json:"status"`
	ContentType  string      `json:"content_type"`
	HTML         string      `json:"-"`
	VisibleText  string      `json:"visible_text"`
	CanonicalURL string      `json:"canonical_url,omitempty"`
	Type         PageType    `json:"page_type"`
	Confidence   float64     `json:"classification_confidence"`
	Depth        int         `json:"depth"`
	Source       SourceTag   `json:"source"`
	ContentHash  string      `json:"content_hash,omitempty"`
	Links        []Link      `json:"extracted_links,omitempty"`
	Render       RenderType  `json:"render_type"`
	Error        *CrawlError `json:"error,omitempty"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// OK reports whether the artifact carries a successful response.
func (a *PageArtifact) OK() bool {
	return a.Error == nil && a.Status == 200
}

// Metadata summarises a finished crawl.
type Metadata struct {
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     time.Time    `json:"completed_at"`
	Duration        time.Duration `json:"duration"`
	PagesDiscovered int          `json:"pages_discovered"`
	PagesFetched    int          `json:"pages_fetched"`
	PagesSkipped    int          `json:"pages_skipped"`
	SitemapFound    bool         `json:"sitemap_found"`
	SitemapUsed     bool         `json:"sitemap_used"`
	RobotsChecked   bool         `json:"robots_checked"`
	EarlyExit       bool         `json:"early_exit"`
	EarlyExitReason string       `json:"early_exit_reason,omitempty"`
	TimedOut        bool         `json:"timed_out"`
	Errors          []CrawlError `json:"errors,omitempty"`
}
