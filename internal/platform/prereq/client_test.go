package prereq

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

func TestParseFacts_Valid(t *testing.T) {
	facts, err := ParseFacts([]byte(`{
		"version": 1,
		"wallet_exists": true,
		"has_portfolio_capital": true,
		"rules_accepted": false,
		"panic_active": false
	}`))
	require.NoError(t, err)
	assert.True(t, facts.WalletExists)
	assert.True(t, facts.HasPortfolioCapital)
	assert.False(t, facts.RulesAccepted)
	assert.False(t, facts.PanicActive)
}

func TestParseFacts_MissingFieldFailsClosed(t *testing.T) {
	cases := map[string]string{
		"panic_active":          `{"version":1,"wallet_exists":true,"has_portfolio_capital":true,"rules_accepted":true}`,
		"wallet_exists":         `{"version":1,"has_portfolio_capital":true,"rules_accepted":true,"panic_active":false}`,
		"has_portfolio_capital": `{"version":1,"wallet_exists":true,"rules_accepted":true,"panic_active":false}`,
		"rules_accepted":        `{"version":1,"wallet_exists":true,"has_portfolio_capital":true,"panic_active":false}`,
		"version":               `{"wallet_exists":true,"has_portfolio_capital":true,"rules_accepted":true,"panic_active":false}`,
	}
	for field, body := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := ParseFacts([]byte(body))
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestParseFacts_RejectsMistypedField(t *testing.T) {
	_, err := ParseFacts([]byte(`{"version":1,"wallet_exists":"yes","has_portfolio_capital":true,"rules_accepted":true,"panic_active":false}`))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestParseFacts_RejectsUnsupportedVersion(t *testing.T) {
	_, err := ParseFacts([]byte(`{"version":2,"wallet_exists":true,"has_portfolio_capital":true,"rules_accepted":true,"panic_active":false}`))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestClient_FetchFacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acc-1/prerequisites", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"version":1,"wallet_exists":true,"has_portfolio_capital":true,"rules_accepted":true,"panic_active":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	facts, err := c.FetchFacts(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, facts.WalletExists)
}

func TestClient_FetchFactsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.FetchFacts(context.Background(), "acc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFactsUnavailable)
	assert.False(t, domain.IsValidation(err), "transport failure is unavailability, not malformed input")
}
