package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func TestClient_FetchPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices", r.URL.Path)
		w.Write([]byte(`{"prices":[
			{"symbol":"BTC-EUR","price":42000,"as_of":"2026-08-30T10:00:00Z"},
			{"symbol":"ETH","price":2800.5,"as_of":"2026-08-30T10:00:01Z"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	prices, err := c.FetchPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 42000.0, prices["BTC-EUR"].Price)
	assert.Equal(t, 2800.5, prices["ETH"].Price)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), prices["BTC-EUR"].AsOf)
}

func TestClient_FetchPricesRejectsMalformedEntries(t *testing.T) {
	cases := map[string]string{
		"missing symbol": `{"prices":[{"price":42000}]}`,
		"missing price":  `{"prices":[{"symbol":"BTC-EUR"}]}`,
		"bad as_of":      `{"prices":[{"symbol":"BTC-EUR","price":1,"as_of":"yesterday"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "", time.Second)
			_, err := c.FetchPrices(context.Background())
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestClient_FetchPricesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.FetchPrices(context.Background())
	assert.Error(t, err)
}
