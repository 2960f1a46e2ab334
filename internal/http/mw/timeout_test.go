package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// Timeout middleware
// =============================================================================

func timeoutHandler(delay time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
	})
}

func TestTimeoutAllowsFastRequests(t *testing.T) {
	mw := Timeout(TimeoutConfig{Default: time.Second})
	srv := httptest.NewServer(mw(timeoutHandler(0)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestTimeoutCutsSlowRequests(t *testing.T) {
	mw := Timeout(TimeoutConfig{Default: 20 * time.Millisecond})
	srv := httptest.NewServer(mw(timeoutHandler(time.Second)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", resp.StatusCode)
	}
}

func TestTimeoutExtendedPattern(t *testing.T) {
	mw := Timeout(TimeoutConfig{
		Default:          20 * time.Millisecond,
		Extended:         time.Second,
		ExtendedPatterns: []string{"/screenings"},
	})
	srv := httptest.NewServer(mw(timeoutHandler(100 * time.Millisecond)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/screenings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("extended path status = %d, want 200", resp.StatusCode)
	}
}
