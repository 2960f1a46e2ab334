// Package scoring computes the advisory compliance score from screening
// signals and resolves domain age through RDAP.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultRDAPBaseURL = "https://rdap.org"

// rdapResponse is the subset of the RDAP domain object we read.
type rdapResponse struct {
	Events []rdapEvent `json:"events"`
}

type rdapEvent struct {
	EventAction string    `json:"eventAction"`
	EventDate   time.Time `json:"eventDate"`
}

// RDAPClient resolves domain registration dates from the public RDAP
// bootstrap service.
type RDAPClient struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
	enabled bool
}

// NewRDAPClient creates an RDAP client. A disabled client reports every
// domain age as unknown.
func NewRDAPClient(timeout time.Duration, enabled bool, logger *slog.Logger) *RDAPClient {
	return &RDAPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultRDAPBaseURL,
		logger:  logger.With("component", "rdap"),
		enabled: enabled,
	}
}

// DomainAgeDays returns the age of a domain registration in days. ok is false
// when the lookup fails or no registration event exists; age is then unusable
// and scores as unknown.
func (c *RDAPClient) DomainAgeDays(ctx context.Context, domain string) (int, bool) {
	if !c.enabled || domain == "" {
		return 0, false
	}

	url := fmt.Sprintf("%s/domain/%s", c.baseURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("rdap lookup failed", "domain", domain, "error", err)
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("rdap lookup non-200", "domain", domain, "status", resp.StatusCode)
		return 0, false
	}

	var body rdapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Debug("rdap decode failed", "domain", domain, "error", err)
		return 0, false
	}

	for _, ev := range body.Events {
		if ev.EventAction == "registration" && !ev.EventDate.IsZero() {
			age := int(time.Since(ev.EventDate).Hours() / 24)
			if age < 0 {
				age = 0
			}
			return age, true
		}
	}
	return 0, false
}
