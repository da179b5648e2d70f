package valuation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func quote(symbol string, price float64) domain.PriceQuote {
	return domain.PriceQuote{Symbol: symbol, Price: price, AsOf: time.Now()}
}

func TestResolve_ExactPairFirst(t *testing.T) {
	prices := domain.PriceMap{
		"BTC-EUR": quote("BTC-EUR", 42000),
		"BTC":     quote("BTC", 41000),
	}
	q, ok := Resolve("BTC-EUR", prices)
	require.True(t, ok)
	assert.Equal(t, 42000.0, q.Price)
}

func TestResolve_FallsBackToBaseSymbol(t *testing.T) {
	prices := domain.PriceMap{"BTC": quote("BTC", 41000)}

	q, ok := Resolve("BTC-EUR", prices)
	require.True(t, ok)
	assert.Equal(t, 41000.0, q.Price)
}

func TestResolve_BareSymbolTriesPairForm(t *testing.T) {
	prices := domain.PriceMap{"ETH-EUR": quote("ETH-EUR", 3000)}

	q, ok := Resolve("ETH", prices)
	require.True(t, ok)
	assert.Equal(t, 3000.0, q.Price)
}

func TestResolve_CaseInsensitiveFallback(t *testing.T) {
	prices := domain.PriceMap{"btc-eur": quote("btc-eur", 42000)}
	q, ok := Resolve("BTC-EUR", prices)
	require.True(t, ok)
	assert.Equal(t, 42000.0, q.Price)

	prices = domain.PriceMap{"btc": quote("btc", 41000)}
	q, ok = Resolve("BTC-EUR", prices)
	require.True(t, ok)
	assert.Equal(t, 41000.0, q.Price)
}

func TestResolve_NonPositivePriceIsAbsent(t *testing.T) {
	prices := domain.PriceMap{
		"BTC-EUR": quote("BTC-EUR", 0),
		"BTC":     quote("BTC", 41000),
	}
	// Zero price on the exact match falls through to the base symbol.
	q, ok := Resolve("BTC-EUR", prices)
	require.True(t, ok)
	assert.Equal(t, 41000.0, q.Price)

	_, ok = Resolve("DOGE", domain.PriceMap{"DOGE": quote("DOGE", -1)})
	assert.False(t, ok)

	_, ok = Resolve("DOGE", domain.PriceMap{"DOGE": quote("DOGE", math.NaN())})
	assert.False(t, ok)
}

func TestResolve_NotFound(t *testing.T) {
	_, ok := Resolve("XRP", domain.PriceMap{"BTC": quote("BTC", 41000)})
	assert.False(t, ok)

	_, ok = Resolve("XRP", nil)
	assert.False(t, ok)
}
