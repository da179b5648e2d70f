package prereq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// responseVersion is the prerequisite endpoint's fixed response shape
// version this client understands.
const responseVersion = 1

// Client fetches the prerequisite fact tuple consumed by the readiness
// gate. The response shape is versioned and strictly validated: a missing
// or mistyped field is a validation error, never a guessed default, because
// the gate downstream must fail closed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a prerequisite fact client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// factsResponse uses pointer fields so absent booleans are distinguishable
// from false.
type factsResponse struct {
	Version             *int  `json:"version"`
	WalletExists        *bool `json:"wallet_exists"`
	HasPortfolioCapital *bool `json:"has_portfolio_capital"`
	RulesAccepted       *bool `json:"rules_accepted"`
	PanicActive         *bool `json:"panic_active"`
}

// FetchFacts returns the validated fact tuple for one account.
func (c *Client) FetchFacts(ctx context.Context, accountID string) (domain.ReadinessFacts, error) {
	url := fmt.Sprintf("%s/v1/accounts/%s/prerequisites", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ReadinessFacts{}, fmt.Errorf("prereq: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ReadinessFacts{}, fmt.Errorf("prereq: http request: %v: %w", err, domain.ErrFactsUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ReadinessFacts{}, fmt.Errorf("prereq: read response: %v: %w", err, domain.ErrFactsUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ReadinessFacts{}, fmt.Errorf("prereq: HTTP %d: %s: %w", resp.StatusCode, string(body), domain.ErrFactsUnavailable)
	}

	return ParseFacts(body)
}

// ParseFacts shape-validates a raw prerequisite response. Every field is
// required; the caller gets a ValidationError naming the first missing one.
func ParseFacts(body []byte) (domain.ReadinessFacts, error) {
	var payload factsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ReadinessFacts{}, domain.NewValidationError("body", "prereq response is not valid JSON: %v", err)
	}

	switch {
	case payload.Version == nil:
		return domain.ReadinessFacts{}, domain.NewValidationError("version", "missing required field")
	case *payload.Version != responseVersion:
		return domain.ReadinessFacts{}, domain.NewValidationError("version", "unsupported version %d, want %d", *payload.Version, responseVersion)
	case payload.WalletExists == nil:
		return domain.ReadinessFacts{}, domain.NewValidationError("wallet_exists", "missing required field")
	case payload.HasPortfolioCapital == nil:
		return domain.ReadinessFacts{}, domain.NewValidationError("has_portfolio_capital", "missing required field")
	case payload.RulesAccepted == nil:
		return domain.ReadinessFacts{}, domain.NewValidationError("rules_accepted", "missing required field")
	case payload.PanicActive == nil:
		return domain.ReadinessFacts{}, domain.NewValidationError("panic_active", "missing required field")
	}

	return domain.ReadinessFacts{
		WalletExists:        *payload.WalletExists,
		HasPortfolioCapital: *payload.HasPortfolioCapital,
		RulesAccepted:       *payload.RulesAccepted,
		PanicActive:         *payload.PanicActive,
	}, nil
}
