package valuation

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func newTestCalculator(gasPerTx float64) *Calculator {
	return NewCalculator(CalculatorConfig{GasPerTxEur: gasPerTx}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCalculator_Scenario(t *testing.T) {
	// One BTC buy of 0.5 at 20000 with 10 fees, live price 42000.
	aggs, err := Aggregate([]domain.Trade{buyTrade("BTC", 0.5, 20000, 10)})
	require.NoError(t, err)
	prices := domain.PriceMap{"BTC-EUR": quote("BTC-EUR", 42000)}

	c := newTestCalculator(2)
	snap, err := c.Compute("acc-1", domain.ModeTest, 5000, aggs, prices, 1)
	require.NoError(t, err)

	assert.InDelta(t, 21000, snap.OpenPositionsValueEur, 1e-6)
	assert.InDelta(t, 990, snap.UnrealizedPnlEur, 1e-6)
	assert.InDelta(t, 2, snap.GasSpentEur, 1e-6)
	assert.InDelta(t, 5988, snap.TotalPortfolioValueEur, 1e-6)
	assert.False(t, snap.HasMissingPrices)
	assert.Empty(t, snap.MissingSymbols)
}

func TestCalculator_FormulaInvariant(t *testing.T) {
	aggs := map[string]domain.PositionAggregate{
		"BTC": {Symbol: "BTC", TotalAmount: 0.3, TotalCostBasis: 12000},
		"ETH": {Symbol: "ETH", TotalAmount: 4, TotalCostBasis: 11000},
		"SOL": {Symbol: "SOL", TotalAmount: 50, TotalCostBasis: 7000},
	}
	prices := domain.PriceMap{
		"BTC-EUR": quote("BTC-EUR", 40000),
		"ETH":     quote("ETH", 2800),
		// SOL deliberately unpriced.
	}

	c := newTestCalculator(0.5)
	snap, err := c.Compute("acc-1", domain.ModeLive, 1234.56, aggs, prices, 7)
	require.NoError(t, err)
	assert.InDelta(t, snap.CashEur+snap.UnrealizedPnlEur-snap.GasSpentEur, snap.TotalPortfolioValueEur, 1e-6)
}

func TestCalculator_PartialPriceExclusion(t *testing.T) {
	aggs := map[string]domain.PositionAggregate{
		"BTC": {Symbol: "BTC", TotalAmount: 0.5, TotalCostBasis: 20010},
		"XYZ": {Symbol: "XYZ", TotalAmount: 100, TotalCostBasis: 5000},
	}
	prices := domain.PriceMap{"BTC-EUR": quote("BTC-EUR", 42000)}

	c := newTestCalculator(0)
	snap, err := c.Compute("acc-1", domain.ModeTest, 1000, aggs, prices, 0)
	require.NoError(t, err)

	// XYZ's cost basis must not leak into P&L or position value.
	assert.InDelta(t, 990, snap.UnrealizedPnlEur, 1e-6)
	assert.InDelta(t, 21000, snap.OpenPositionsValueEur, 1e-6)
	assert.True(t, snap.HasMissingPrices)
	assert.Equal(t, []string{"XYZ"}, snap.MissingSymbols)
}

func TestCalculator_EmptyPortfolio(t *testing.T) {
	c := newTestCalculator(2)
	snap, err := c.Compute("acc-1", domain.ModeTest, 5000, nil, nil, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5000, snap.TotalPortfolioValueEur, 1e-6)
	assert.False(t, snap.HasMissingPrices)
}

func TestCalculator_GasAccrual(t *testing.T) {
	c := newTestCalculator(0.25)
	snap, err := c.Compute("acc-1", domain.ModeTest, 100, nil, nil, 8)
	require.NoError(t, err)
	assert.InDelta(t, 2, snap.GasSpentEur, 1e-6)
	assert.InDelta(t, 98, snap.TotalPortfolioValueEur, 1e-6)
}

func TestCalculator_RejectsMalformedInput(t *testing.T) {
	c := newTestCalculator(0)

	_, err := c.Compute("acc-1", domain.ModeTest, math.NaN(), nil, nil, 0)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = c.Compute("acc-1", domain.ModeTest, 100, nil, nil, -1)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	bad := map[string]domain.PositionAggregate{
		"BTC": {Symbol: "BTC", TotalAmount: -1, TotalCostBasis: 100},
	}
	_, err = c.Compute("acc-1", domain.ModeTest, 100, bad, nil, 0)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
