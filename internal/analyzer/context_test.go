package analyzer

import (
	"testing"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

// =============================================================================
// Business context inference
// =============================================================================

func TestInferEcommerce(t *testing.T) {
	g := graphWith(
		okPage("https://shop.example/", pagegraph.PageHome,
			"Browse the product catalog. Add to cart and enjoy free shipping on every order. Buy now."),
		okPage("https://shop.example/cart", pagegraph.PageOther,
			"Your shopping cart is empty. Proceed to checkout when ready."),
	)

	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(g)

	if ctx.Primary != models.BusinessEcommerce {
		t.Errorf("primary = %v, want ECOMMERCE_MERCHANT", ctx.Primary)
	}
	if ctx.Status != models.ContextDetermined {
		t.Errorf("status = %v, want DETERMINED", ctx.Status)
	}
	if ctx.FrontendSurface != models.SurfaceFullCommerce {
		t.Errorf("surface = %v, want FULL_COMMERCE", ctx.FrontendSurface)
	}
}

func TestInferUndeterminedWithoutPages(t *testing.T) {
	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(pagegraph.NewGraph())

	if ctx.Status != models.ContextUndetermined {
		t.Errorf("status = %v, want UNDETERMINED", ctx.Status)
	}
	if ctx.Primary != models.BusinessUnknown {
		t.Errorf("primary = %v, want UNKNOWN", ctx.Primary)
	}
}

func TestInferUndeterminedWhenHomeBlocked(t *testing.T) {
	home := okPage("https://gated.example/", pagegraph.PageHome, "")
	home.Status = 403
	home.Error = &pagegraph.CrawlError{Kind: pagegraph.ErrKindBlocked, URL: home.RequestedURL}
	g := graphWith(home)

	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(g)

	if ctx.Status != models.ContextUndetermined {
		t.Errorf("status = %v, want UNDETERMINED", ctx.Status)
	}
	if ctx.FrontendSurface != models.SurfaceAuthGated {
		t.Errorf("surface = %v, want AUTH_GATED for 403 homepage", ctx.FrontendSurface)
	}
}

func TestInferLowConfidenceWhenNoMarkersScore(t *testing.T) {
	// Reachable but marker-less pages must not be UNDETERMINED; that status
	// is reserved for unreachable or blocked sites.
	g := graphWith(okPage("https://plain.example/", pagegraph.PageHome,
		"Welcome. We have been serving the community since 1985."))

	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(g)

	if ctx.Status != models.ContextLowConfidence {
		t.Errorf("status = %v, want LOW_CONFIDENCE for a reachable marker-less site", ctx.Status)
	}
	if ctx.Primary != models.BusinessUnknown {
		t.Errorf("primary = %v, want UNKNOWN", ctx.Primary)
	}
}

func TestInferLowConfidenceOnThinEvidence(t *testing.T) {
	g := graphWith(okPage("https://thin.example/", pagegraph.PageHome,
		"Sign up for updates."))

	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(g)

	if ctx.Status != models.ContextLowConfidence {
		t.Errorf("status = %v (score %.1f), want LOW_CONFIDENCE", ctx.Status, ctx.Confidence)
	}
}

func TestInferLowConfidenceOnAmbiguousEvidence(t *testing.T) {
	g := graphWith(
		okPage("https://both.example/", pagegraph.PageHome,
			"Add to cart. Shopping cart. Checkout here. Free shipping. Buy now."),
		okPage("https://both.example/dev", pagegraph.PageOther,
			"API reference and API documentation. Download the SDK from the developer portal."),
	)

	a := NewContextAnalyzer(testLogger())
	ctx := a.Infer(g)

	if ctx.Status != models.ContextLowConfidence {
		t.Errorf("status = %v, want LOW_CONFIDENCE for near-tied scores", ctx.Status)
	}
	if len(ctx.Alternatives) == 0 {
		t.Error("no alternatives recorded for ambiguous evidence")
	}
}

// =============================================================================
// MCC classification
// =============================================================================

func TestClassifyMCCPrimary(t *testing.T) {
	g := graphWith(
		okPage("https://boutique.example/", pagegraph.PageHome,
			"New season clothing and apparel. Fashion for every occasion, from a summer dress to classic jeans."),
		okPage("https://boutique.example/shop", pagegraph.PageProduct,
			"Shop the latest fashion outfit collections and apparel drops."),
	)

	c := NewMCCClassifier(testLogger())
	result := c.Classify(g)

	if result.Primary == nil {
		t.Fatal("no primary MCC match")
	}
	if result.Primary.Code != "5651" {
		t.Errorf("primary code = %s, want 5651 (clothing)", result.Primary.Code)
	}
	if result.LowConfidence {
		t.Errorf("LowConfidence = true with score %d", result.Primary.Score)
	}
	if len(result.Primary.Pages) != 2 {
		t.Errorf("evidence pages = %d, want 2", len(result.Primary.Pages))
	}
}

func TestClassifyMCCLowConfidence(t *testing.T) {
	g := graphWith(okPage("https://vague.example/", pagegraph.PageHome,
		"We sell software."))

	c := NewMCCClassifier(testLogger())
	result := c.Classify(g)

	if result.Primary == nil {
		t.Fatal("no primary MCC match")
	}
	if !result.LowConfidence {
		t.Errorf("LowConfidence = false for single hit (confidence %.0f)", result.Primary.Confidence)
	}
}

func TestClassifyMCCConfidenceCap(t *testing.T) {
	g := graphWith(okPage("https://mega.example/", pagegraph.PageHome,
		"clothing apparel fashion t-shirt dress jeans outfit and more clothing"))

	c := NewMCCClassifier(testLogger())
	result := c.Classify(g)

	if result.Primary == nil {
		t.Fatal("no primary MCC match")
	}
	if result.Primary.Confidence > 100 {
		t.Errorf("confidence = %.0f, want capped at 100", result.Primary.Confidence)
	}
}

func TestClassifyMCCEmptyGraph(t *testing.T) {
	c := NewMCCClassifier(testLogger())
	result := c.Classify(pagegraph.NewGraph())

	if result.Primary != nil {
		t.Error("primary set for empty graph")
	}
	if !result.LowConfidence {
		t.Error("LowConfidence = false for empty graph")
	}
}
