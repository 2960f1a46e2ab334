package engine

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/models"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	return &config.Config{
		CrawlTotalBudget:    10 * time.Second,
		CrawlPerPageTimeout: 3 * time.Second,
		CrawlMaxPages:       20,
		CrawlMaxDepth:       2,
		CrawlConcurrency:    10,
		UserAgent:           "TestAgent/1.0",
		BrowserEnabled:      false,
		RDAPEnabled:         false,
		RDAPTimeout:         time.Second,
	}
}

func merchant(url string) *models.MerchantInput {
	return &models.MerchantInput{
		MerchantLegalName:        "Acme Pvt Ltd",
		RegisteredAddress:        "42 Industrial Way, Springfield",
		DeclaredBusinessType:     "retail",
		DeclaredProductsServices: []string{"widgets"},
		WebsiteURL:               url,
		MerchantDisplayName:      "Acme",
	}
}

const storeHome = `<html><head><title>Acme - Fine Widgets</title></head><body>
<nav>
  <a href="/about">About Us</a>
  <a href="/privacy-policy">Privacy Policy</a>
  <a href="/terms">Terms of Service</a>
  <a href="/refund-policy">Refund Policy</a>
  <a href="/contact">Contact</a>
</nav>
<main>Welcome to Acme, purveyors of fine widgets. Add to cart and checkout with free shipping. Widgets from $9.99. Buy now.</main>
</body></html>`

func storeHandler() http.Handler {
	mux := http.NewServeMux()
	page := func(title, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"))
		}
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(storeHome))
	})
	mux.Handle("/about", page("About", "We are Acme Pvt Ltd, established 2010. © 2010-2025 Acme"))
	mux.Handle("/privacy-policy", page("Privacy Policy", "We collect personal data and information about you. Your rights."))
	mux.Handle("/terms", page("Terms of Service", "These terms form an agreement. Liability is limited."))
	mux.Handle("/refund-policy", page("Refund Policy", "Refund and return accepted within 30 days."))
	mux.Handle("/contact", page("Contact", "Email support@acme.example or phone +1 555 0100 200. Address: 42 Industrial Way, Springfield."))
	return mux
}

// =============================================================================
// End-to-end scan
// =============================================================================

func TestScreenHealthyStore(t *testing.T) {
	srv := httptest.NewServer(storeHandler())
	defer srv.Close()

	e := New(testConfig(), nil, testLogger())
	d := e.Screen(context.Background(), merchant(srv.URL))

	if d == nil {
		t.Fatal("nil decision")
	}
	// The test server is plain HTTP, so the SSL points are missing; the
	// decision may escalate but must never FAIL a healthy store.
	if d.Decision == models.DecisionFail {
		t.Errorf("decision = FAIL for a healthy store: %+v", d.ReasonCodes)
	}
	if len(d.PolicyChecks) == 0 {
		t.Error("no policy checks recorded")
	}
	for _, p := range d.PolicyChecks {
		if p.PolicyType == "privacy_policy" && !p.Found {
			t.Error("privacy policy not detected")
		}
	}
	if d.AuditTrail == nil {
		t.Fatal("no audit trail")
	}
	if d.AuditTrail.PagesScanned == 0 {
		t.Error("audit trail records zero pages scanned")
	}
	if len(d.AuditTrail.Timeline) == 0 {
		t.Error("audit trail has no timeline")
	}
	if d.ScanVersion != models.ScanVersion {
		t.Errorf("scan version = %q", d.ScanVersion)
	}
	if d.ProductMatchStatus != models.MatchStatusMatch {
		t.Errorf("product match = %v, want MATCH for widgets", d.ProductMatchStatus)
	}
}

func TestScreenUnreachableSiteFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(testConfig(), nil, testLogger())
	d := e.Screen(context.Background(), merchant(srv.URL))

	if d.Decision != models.DecisionFail {
		t.Errorf("decision = %v, want FAIL for an unreachable site", d.Decision)
	}
	if d.Confidence != 0.95 {
		t.Errorf("confidence = %.2f, want 0.95", d.Confidence)
	}
	if d.AuditTrail == nil || len(d.AuditTrail.Checks) == 0 {
		t.Error("failing scan must still carry audit checks")
	}
}

func TestScreenGamblingContentFails(t *testing.T) {
	mux := http.NewServeMux()
	casino := "<html><head><title>Lucky Spins</title></head><body>" +
		"<nav><a href='/games'>Games</a></nav>" +
		"<main>The best online casino. Play now for real money slots.</main></body></html>"
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(casino))
	})
	mux.HandleFunc("/games", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Try the casino lobby and place your bets.</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := New(testConfig(), nil, testLogger())
	d := e.Screen(context.Background(), merchant(srv.URL))

	if d.Decision != models.DecisionFail {
		t.Fatalf("decision = %v, want FAIL for corroborated gambling content", d.Decision)
	}
	var sawGambling bool
	for _, rc := range d.ReasonCodes {
		if rc.Code == "HIGH_RISK_CONTENT_gambling" {
			sawGambling = true
		}
	}
	if !sawGambling {
		t.Errorf("missing HIGH_RISK_CONTENT_gambling, got %+v", d.ReasonCodes)
	}
	if len(d.AuditTrail.KeywordTriggers) == 0 {
		t.Error("keyword triggers not recorded in the audit trail")
	}
}
