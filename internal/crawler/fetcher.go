package crawler

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/merchantsafe/kyc-screener/internal/htmlutil"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
	"github.com/merchantsafe/kyc-screener/internal/urlutil"
)

const (
	maxBodyBytes       = 2 << 20 // per-page HTML cap
	maxVisibleTextSize = 100_000
)

// fetcher performs single-page HTTP fetches and artifact construction.
type fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

func newFetcher(client *http.Client, userAgent string, timeout time.Duration) *fetcher {
	return &fetcher{client: client, userAgent: userAgent, timeout: timeout}
}

// fetch retrieves one URL and returns a terminal artifact. Fetch errors are
// classified and embedded; the returned artifact is never nil.
func (f *fetcher) fetch(ctx context.Context, rawURL string, depth int, source pagegraph.SourceTag) *pagegraph.PageArtifact {
	a := &pagegraph.PageArtifact{
		RequestedURL: rawURL,
		Depth:        depth,
		Source:       source,
		Render:       pagegraph.RenderHTTP,
		Type:         pagegraph.PageOther,
		FetchedAt:    time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		a.Error = &pagegraph.CrawlError{Kind: pagegraph.ErrKindUnknown, Message: err.Error(), URL: rawURL}
		return a
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		a.Error = classifyFetchError(err, rawURL)
		return a
	}
	defer resp.Body.Close()

	a.Status = resp.StatusCode
	a.FinalURL = resp.Request.URL.String()
	a.ContentType = resp.Header.Get("Content-Type")

	switch {
	case resp.StatusCode == 401, resp.StatusCode == 403, resp.StatusCode == 429:
		a.Error = &pagegraph.CrawlError{
			Kind:    pagegraph.ErrKindBlocked,
			Message: fmt.Sprintf("blocked with status %d", resp.StatusCode),
			URL:     rawURL,
		}
		return a
	case resp.StatusCode >= 400:
		a.Error = &pagegraph.CrawlError{
			Kind:    pagegraph.ErrKindHTTPError,
			Message: fmt.Sprintf("http status %d", resp.StatusCode),
			URL:     rawURL,
		}
		return a
	}

	if !strings.Contains(a.ContentType, "html") && a.ContentType != "" {
		// Non-HTML response carries its status but no parsed content.
		return a
	}

	// Merchant sites are not reliably UTF-8; decode before parsing.
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), a.ContentType)
	if err != nil {
		a.Error = classifyFetchError(err, rawURL)
		return a
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		a.Error = classifyFetchError(err, rawURL)
		return a
	}
	a.HTML = string(body)

	parseArtifactHTML(a)
	return a
}

// parseArtifactHTML fills the parse-derived fields of an artifact from its
// HTML: visible text, canonical URL, links, and content hash.
func parseArtifactHTML(a *pagegraph.PageArtifact) {
	if a.HTML == "" {
		return
	}
	doc, err := htmlutil.Parse(a.HTML)
	if err != nil {
		a.Error = &pagegraph.CrawlError{Kind: pagegraph.ErrKindParse, Message: err.Error(), URL: a.RequestedURL}
		return
	}

	text := htmlutil.VisibleText(doc)
	if len(text) > maxVisibleTextSize {
		text = text[:maxVisibleTextSize]
	}
	a.VisibleText = text
	a.ContentHash = hashText(text)

	base := a.FinalURL
	if base == "" {
		base = a.RequestedURL
	}
	if canonical := htmlutil.CanonicalURL(doc); canonical != "" {
		a.CanonicalURL = urlutil.Normalize(urlutil.Resolve(base, canonical))
	}

	title := htmlutil.Title(doc)
	for _, link := range htmlutil.Links(doc) {
		abs := urlutil.Resolve(base, link.Href)
		if abs == "" {
			continue
		}
		a.Links = append(a.Links, pagegraph.Link{URL: abs, Text: link.Text})
	}

	// Classify unless a caller already assigned a type.
	if a.Type == pagegraph.PageOther || a.Type == "" {
		cls := urlutil.Classify(base, "", title)
		a.Type = cls.Type
		a.Confidence = cls.Confidence
	}
}

// hashText returns the SHA-256 hex digest of cleaned visible text.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// classifyFetchError maps transport failures to the crawl error taxonomy.
func classifyFetchError(err error, url string) *pagegraph.CrawlError {
	msg := err.Error()
	kind := pagegraph.ErrKindUnknown

	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var netErr net.Error

	switch {
	case errors.As(err, &dnsErr):
		kind = pagegraph.ErrKindDNS
	case errors.As(err, &certErr),
		strings.Contains(msg, "tls:"),
		strings.Contains(msg, "x509:"),
		strings.Contains(msg, "certificate"):
		kind = pagegraph.ErrKindSSL
	case errors.Is(err, context.DeadlineExceeded):
		kind = pagegraph.ErrKindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = pagegraph.ErrKindTimeout
	}

	return &pagegraph.CrawlError{Kind: kind, Message: msg, URL: url}
}
