// Package checkout probes a merchant site's purchase flow with a headless
// browser. It finds call-to-action elements, clicks a sample of them, and
// classifies the resulting pages with a weighted score model. When no browser
// is available it degrades to a basic result derived from crawl data.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

const (
	pageLoadTimeout = 30 * time.Second
	ctaClickTimeout = 5 * time.Second
	postClickWait   = 2 * time.Second
	postClickSettle = 1500 * time.Millisecond
	networkIdleWait = 2 * time.Second
	loaderWait      = 500 * time.Millisecond
	probeTimeout    = 8 * time.Second
	maxCTASamples   = 5
)

// fallbackPaths are probed directly when no CTA leads to a checkout page.
var fallbackPaths = []string{"/checkout", "/cart", "/basket", "/order", "/payment"}

// loaderSelectors are waited out during the readiness cascade.
var loaderSelectors = []string{".loader", ".spinner", ".preloader", `[class*="loading"]`}

const clickableSelector = `a, button, [role="button"], input[type="submit"]`

// Validator runs the browser-driven checkout probe.
type Validator struct {
	logger      *slog.Logger
	userAgent   string
	enabled     bool
	pageTimeout time.Duration

	// launch is replaceable so tests can run without a browser binary.
	launch func() (*session, error)
}

// NewValidator creates a checkout validator.
func NewValidator(cfg *config.Config, logger *slog.Logger) *Validator {
	return &Validator{
		logger:      logger.With("component", "checkout_validator"),
		userAgent:   cfg.UserAgent,
		enabled:     cfg.BrowserEnabled,
		pageTimeout: cfg.BrowserTimeout,
		launch:      launchBrowser,
	}
}

// loadTimeout returns the configured page load timeout, falling back to the
// default when unset.
func (v *Validator) loadTimeout() time.Duration {
	if v.pageTimeout > 0 {
		return v.pageTimeout
	}
	return pageLoadTimeout
}

// Validate probes the site's checkout flow. The result is never nil; browser
// failures degrade to a crawl-data result rather than an error.
func (v *Validator) Validate(ctx context.Context, graph *pagegraph.Graph, rootURL string) *models.CheckoutFlowResult {
	if !v.enabled {
		return v.degraded(graph, "browser disabled")
	}

	sess, err := v.launch()
	if err != nil {
		v.logger.Warn("browser unavailable, using crawl data", "error", err)
		return v.degraded(graph, "browser unavailable")
	}
	defer sess.close()

	page, err := sess.newPage(v.userAgent)
	if err != nil {
		v.logger.Warn("failed to create page", "error", err)
		return v.degraded(graph, "browser unavailable")
	}
	defer page.Close()
	page = page.Context(ctx)

	result := &models.CheckoutFlowResult{}

	finalURL, bodyText, err := v.loadPage(ctx, page, rootURL, v.loadTimeout())
	if err != nil {
		v.logger.Warn("checkout page load failed", "url", rootURL, "error", err)
		return v.degraded(graph, "page load failed")
	}
	if isLoginURL(finalURL) {
		result.Evidence = "login redirection detected, checkout flow not probed"
		return result
	}

	result.HasCTA = hasCTAText(bodyText)
	result.PricingVisible = hasPricingText(bodyText)

	ctas := v.findCTAs(page)
	if len(ctas) > 0 {
		result.HasCTA = true
	}

	v.clickCTAs(ctx, page, rootURL, ctas, result)

	if !result.CheckoutReachable {
		v.probeFallbacks(ctx, page, rootURL, graph, result)
	}

	if result.Evidence == "" {
		result.Evidence = fmt.Sprintf("probed %d CTA(s), checkout_reachable=%v", len(ctas), result.CheckoutReachable)
	}
	return result
}

// degraded builds a result from crawl data alone. Checkout-like URLs that
// were fetched during the crawl still count, scored without form evidence.
func (v *Validator) degraded(graph *pagegraph.Graph, reason string) *models.CheckoutFlowResult {
	result := &models.CheckoutFlowResult{
		Evidence: reason + ", result derived from crawl data",
	}
	if home, ok := graph.Home(); ok && home.OK() {
		result.HasCTA = hasCTAText(home.VisibleText)
		result.PricingVisible = hasPricingText(home.VisibleText)
	}
	for _, page := range graph.FetchedPages() {
		if !result.PricingVisible && hasPricingText(page.VisibleText) {
			result.PricingVisible = true
		}
		u := page.FinalURL
		if u == "" {
			u = page.RequestedURL
		}
		score := scoreCheckoutPage(pageSignals{url: u, visibleText: page.VisibleText})
		if score >= checkoutThreshold && score > result.CheckoutConfidence {
			result.CheckoutReachable = true
			result.CheckoutURL = u
			result.CheckoutConfidence = score
		}
	}
	return result
}

// loadPage navigates and runs the readiness cascade: network idle, loader
// selectors hidden, then a short quiet period.
func (v *Validator) loadPage(ctx context.Context, page *rod.Page, url string, timeout time.Duration) (finalURL, bodyText string, err error) {
	p := page.Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return "", "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", "", fmt.Errorf("failed to load: %w", err)
	}

	waitQuiet(page, networkIdleWait)
	for _, sel := range loaderSelectors {
		waitHidden(page, sel, loaderWait)
	}
	sleep(ctx, time.Second)

	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("failed to read page info: %w", err)
	}
	body, err := page.Timeout(5 * time.Second).Element("body")
	if err != nil {
		return info.URL, "", nil
	}
	text, err := body.Text()
	if err != nil {
		return info.URL, "", nil
	}
	return info.URL, text, nil
}

// findCTAs collects visible, enabled clickable elements with CTA text.
func (v *Validator) findCTAs(page *rod.Page) []*rod.Element {
	els, err := page.Timeout(5 * time.Second).Elements(clickableSelector)
	if err != nil {
		return nil
	}
	var ctas []*rod.Element
	for _, el := range els {
		text, err := el.Text()
		if err != nil || strings.TrimSpace(text) == "" {
			if val, _ := el.Attribute("value"); val != nil {
				text = *val
			}
		}
		if !hasCTAText(text) {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if disabled, _ := el.Attribute("disabled"); disabled != nil {
			continue
		}
		ctas = append(ctas, el)
	}
	return ctas
}

// clickCTAs samples CTAs, clicks each, and classifies the landing page.
// Stops at the first page that scores as a checkout.
func (v *Validator) clickCTAs(ctx context.Context, page *rod.Page, rootURL string, ctas []*rod.Element, result *models.CheckoutFlowResult) {
	sample := ctas
	if len(sample) > maxCTASamples {
		sample = sample[:maxCTASamples]
	}

	for _, el := range sample {
		if ctx.Err() != nil {
			return
		}
		label, _ := el.Text()
		label = strings.TrimSpace(label)

		if err := el.ScrollIntoView(); err != nil {
			result.DeadCTAs = append(result.DeadCTAs, models.DeadCTA{Text: label, Reason: "element detached"})
			continue
		}
		if err := el.Timeout(ctaClickTimeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
			reason := "click failed"
			if ctx.Err() != nil || strings.Contains(err.Error(), "context deadline") {
				reason = "click timeout"
			}
			result.DeadCTAs = append(result.DeadCTAs, models.DeadCTA{Text: label, Reason: reason})
			continue
		}
		result.CTAClickable = true

		sleep(ctx, postClickWait)
		waitQuiet(page, postClickSettle)

		if v.classifyLanding(page, result) {
			return
		}

		// Return to the start page for the next CTA.
		if _, _, err := v.loadPage(ctx, page, rootURL, probeTimeout); err != nil {
			return
		}
	}
}

// probeFallbacks visits common checkout paths and checkout-like URLs seen
// during the crawl.
func (v *Validator) probeFallbacks(ctx context.Context, page *rod.Page, rootURL string, graph *pagegraph.Graph, result *models.CheckoutFlowResult) {
	candidates := make([]string, 0, len(fallbackPaths)+4)
	for _, path := range fallbackPaths {
		candidates = append(candidates, urlutil.Resolve(rootURL, path))
	}
	for _, u := range graph.URLs() {
		if strongPathRe.MatchString(u) || weakPathRe.MatchString(u) {
			candidates = append(candidates, u)
		}
	}

	for _, u := range candidates {
		if ctx.Err() != nil {
			return
		}
		finalURL, _, err := v.loadPage(ctx, page, u, probeTimeout)
		if err != nil {
			continue
		}
		if isLoginURL(finalURL) {
			continue
		}
		if v.classifyLanding(page, result) {
			return
		}
	}
}

// classifyLanding scores the current page and records it when it passes the
// checkout threshold.
func (v *Validator) classifyLanding(page *rod.Page, result *models.CheckoutFlowResult) bool {
	info, err := page.Info()
	if err != nil {
		return false
	}
	var text string
	if body, err := page.Timeout(5 * time.Second).Element("body"); err == nil {
		text, _ = body.Text()
	}
	fields := v.countFormFields(page)

	score := scoreCheckoutPage(pageSignals{
		url:            info.URL,
		visibleText:    text,
		formFieldCount: fields,
	})
	if score < checkoutThreshold {
		return false
	}

	result.CheckoutReachable = true
	result.CheckoutURL = info.URL
	result.CheckoutConfidence = score
	result.FormFieldsPresent = fields > 0
	if !result.PricingVisible {
		result.PricingVisible = hasPricingText(text)
	}
	v.logger.Debug("checkout page classified", "url", info.URL, "score", score)
	return true
}

func (v *Validator) countFormFields(page *rod.Page) int {
	total := 0
	for _, sel := range paymentFieldSelectors {
		els, err := page.Timeout(time.Second).Elements(sel)
		if err != nil {
			continue
		}
		total += len(els)
	}
	return total
}

// waitQuiet waits for network traffic to settle, bounded by d. WaitRequestIdle
// panics on some teardown races, which only means the wait ended.
func waitQuiet(page *rod.Page, d time.Duration) {
	defer func() { _ = recover() }()
	wait := page.Timeout(d).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()
}

// waitHidden polls until no visible element matches sel, bounded by d.
func waitHidden(page *rod.Page, sel string, d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		els, err := page.Timeout(d).Elements(sel)
		if err != nil || len(els) == 0 {
			return
		}
		anyVisible := false
		for _, el := range els {
			if visible, err := el.Visible(); err == nil && visible {
				anyVisible = true
				break
			}
		}
		if !anyVisible {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
