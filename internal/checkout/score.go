package checkout

import (
	"regexp"
	"strings"
)

// checkoutThreshold is the minimum page score that classifies a page as a
// checkout flow.
const checkoutThreshold = 0.25

var (
	ctaPattern = regexp.MustCompile(`(?i)\b(buy now|buy|add to cart|add to basket|shop now|order now|purchase|checkout|subscribe|start free trial|free trial|get started|view pricing|pricing|contact sales)\b`)

	strongPathRe = regexp.MustCompile(`(?i)/(checkout|payment|pay|order|purchase)(/|$|\?)`)
	weakPathRe   = regexp.MustCompile(`(?i)/(cart|basket)(/|$|\?)`)
	routeParamRe = regexp.MustCompile(`(?i)[?&]route=(checkout|cart|payment)`)

	loginURLRe = regexp.MustCompile(`(?i)/(login|log-in|signin|sign-in|auth|account/login)(/|$|\?)`)

	pricingRe = regexp.MustCompile(`(?i)([$€£¥]\s?\d|\d+\s?(usd|eur|gbp)\b|per (month|year|user)\b)`)
)

// strongIndicators identify a page where an order is being completed.
var strongIndicators = []string{
	"order total", "payment method", "credit card", "billing address", "place order",
}

// weakIndicators are supporting checkout phrases.
var weakIndicators = []string{
	"subtotal", "shipping method", "promo code", "secure checkout",
	"continue to payment", "cart total", "order summary", "apply coupon",
}

// paymentFieldSelectors locate payment, billing, and shipping form inputs.
var paymentFieldSelectors = []string{
	`input[name*="card"]`, `input[autocomplete="cc-number"]`, `input[name*="cvv"]`,
	`input[name*="cvc"]`, `input[name*="billing"]`, `input[name*="shipping"]`,
	`input[autocomplete="postal-code"]`, `select[name*="country"]`,
	`input[name*="expiry"]`, `input[name*="zip"]`,
}

// pageSignals carries the observations used to score a candidate checkout
// page.
type pageSignals struct {
	url            string
	visibleText    string
	formFieldCount int
}

// scoreCheckoutPage computes the checkout confidence for one page. Signal
// weights are capped per group and the final score is clamped to [0, 1].
func scoreCheckoutPage(s pageSignals) float64 {
	score := 0.0
	lower := strings.ToLower(s.visibleText)

	// URL signals, capped at 0.4.
	urlScore := 0.0
	switch {
	case strongPathRe.MatchString(s.url):
		urlScore = 0.4
	case weakPathRe.MatchString(s.url):
		urlScore = 0.3
	}
	if routeParamRe.MatchString(s.url) {
		urlScore += 0.2
	}
	if urlScore > 0.4 {
		urlScore = 0.4
	}
	score += urlScore

	// Strong content indicators, 0.2 each capped at 0.5.
	strong := 0.0
	for _, ind := range strongIndicators {
		if strings.Contains(lower, ind) {
			strong += 0.2
		}
	}
	if strong > 0.5 {
		strong = 0.5
	}
	score += strong

	// Weak indicators contribute only in aggregate.
	weak := 0
	for _, ind := range weakIndicators {
		if strings.Contains(lower, ind) {
			weak++
		}
	}
	switch {
	case weak >= 2:
		score += 0.15
	case weak == 1:
		score += 0.05
	}

	if s.formFieldCount > 0 {
		score += 0.1
	}

	// Many add-to-cart buttons mean a product listing, not a checkout.
	listings := strings.Count(lower, "add to cart")
	penalty := 0.1 * float64(listings)
	if penalty > 0.3 {
		penalty = 0.3
	}
	score -= penalty

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// isLoginURL reports whether a URL points at a login or auth surface.
func isLoginURL(u string) bool {
	return loginURLRe.MatchString(u)
}

// hasCTAText reports whether text contains any call-to-action phrase.
func hasCTAText(text string) bool {
	return ctaPattern.MatchString(text)
}

// hasPricingText reports whether text shows concrete prices.
func hasPricingText(text string) bool {
	return pricingRe.MatchString(text)
}
