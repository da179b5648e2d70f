package valuation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func buyTrade(symbol string, amount, totalValue, fees float64) domain.Trade {
	return domain.Trade{
		AccountID:  "acc-1",
		Symbol:     symbol,
		Side:       domain.TradeSideBuy,
		Amount:     amount,
		TotalValue: totalValue,
		Fees:       fees,
		ExecutedAt: time.Now(),
		IsTestMode: true,
	}
}

func TestAggregate_GroupsByBaseSymbol(t *testing.T) {
	trades := []domain.Trade{
		buyTrade("BTC-EUR", 0.5, 20000, 10),
		buyTrade("BTC", 0.25, 10500, 5),
		buyTrade("ETH-EUR", 2, 6000, 6),
	}

	aggs, err := Aggregate(trades)
	require.NoError(t, err)
	require.Len(t, aggs, 2)

	btc := aggs["BTC"]
	assert.InDelta(t, 0.75, btc.TotalAmount, 1e-9)
	assert.InDelta(t, 30515, btc.TotalCostBasis, 1e-9)
	assert.InDelta(t, 30515.0/0.75, btc.EntryPrice(), 1e-9)

	eth := aggs["ETH"]
	assert.InDelta(t, 2, eth.TotalAmount, 1e-9)
	assert.InDelta(t, 6006, eth.TotalCostBasis, 1e-9)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	trades := []domain.Trade{
		buyTrade("BTC-EUR", 0.5, 20000, 10),
		buyTrade("BTC", 0.1, 4100, 2),
		buyTrade("ETH", 1, 3000, 3),
		buyTrade("SOL-USD", 10, 1500, 1),
	}
	want, err := Aggregate(trades)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]domain.Trade, len(trades))
		copy(shuffled, trades)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := Aggregate(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAggregate_MixedModesIsHardError(t *testing.T) {
	test := buyTrade("BTC", 0.5, 20000, 10)
	live := buyTrade("BTC", 0.5, 20000, 10)
	live.IsTestMode = false

	_, err := Aggregate([]domain.Trade{test, live})
	assert.ErrorIs(t, err, domain.ErrMixedModes)
}

func TestAggregate_SkipsCorruptedAndSells(t *testing.T) {
	corrupted := buyTrade("BTC", 1, 40000, 10)
	corrupted.IsCorrupted = true
	sell := buyTrade("BTC", 0.5, 21000, 5)
	sell.Side = domain.TradeSideSell

	aggs, err := Aggregate([]domain.Trade{
		corrupted,
		sell,
		buyTrade("BTC", 0.25, 10000, 5),
	})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.InDelta(t, 0.25, aggs["BTC"].TotalAmount, 1e-9)
	assert.InDelta(t, 10005, aggs["BTC"].TotalCostBasis, 1e-9)
}

func TestAggregate_DropsZeroAmountAggregates(t *testing.T) {
	aggs, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}

func TestAggregate_RejectsMalformedInput(t *testing.T) {
	cases := map[string]domain.Trade{
		"negative amount": buyTrade("BTC", -1, 100, 0),
		"zero amount":     buyTrade("BTC", 0, 100, 0),
		"nan amount":      buyTrade("BTC", math.NaN(), 100, 0),
		"negative fees":   buyTrade("BTC", 1, 100, -1),
		"inf total value": buyTrade("BTC", 1, math.Inf(1), 0),
	}
	for name, trade := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Aggregate([]domain.Trade{trade})
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
}
