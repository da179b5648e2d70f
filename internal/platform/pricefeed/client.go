package pricefeed

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

// Client fetches live quotes from the external price feed over HTTP. The
// feed returns the full symbol -> quote mapping in one call and may omit
// symbols with no current quote; filtering unusable prices is the
// resolver's job, not the client's.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a price feed client.
//
// baseURL is the feed root, e.g. "https://prices.example.com"; quotes are
// fetched from GET {baseURL}/v1/prices.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// pricesResponse is the feed's response envelope.
type pricesResponse struct {
	Prices []struct {
		Symbol string   `json:"symbol"`
		Price  *float64 `json:"price"`
		AsOf   string   `json:"as_of"`
	} `json:"prices"`
}

// FetchPrices returns the current quote map.
func (c *Client) FetchPrices(ctx context.Context) (domain.PriceMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/prices", nil)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricefeed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload pricesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("pricefeed: decode response: %w", err)
	}

	prices := make(domain.PriceMap, len(payload.Prices))
	now := time.Now().UTC()
	for _, p := range payload.Prices {
		symbol := strings.TrimSpace(p.Symbol)
		if symbol == "" {
			return nil, domain.NewValidationError("symbol", "price feed entry missing symbol")
		}
		if p.Price == nil {
			return nil, domain.NewValidationError("price", "price feed entry %s missing price", symbol)
		}
		asOf := now
		if p.AsOf != "" {
			t, err := time.Parse(time.RFC3339Nano, p.AsOf)
			if err != nil {
				return nil, domain.NewValidationError("as_of", "price feed entry %s: %v", symbol, err)
			}
			asOf = t
		}
		prices[symbol] = domain.PriceQuote{Symbol: symbol, Price: *p.Price, AsOf: asOf}
	}
	return prices, nil
}
