package valuation

import (
	"math"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// Aggregate folds a set of open trades into per-asset position aggregates.
// It is a pure function of its input: no I/O, no hidden state, and the same
// trade set in any order produces identical aggregates.
//
// The caller supplies currently-open exposure for exactly one account and
// one mode. Trades from mixed modes are a hard error, never cleaned up here.
// Corrupted trades and sell-side trades contribute nothing: closed exposure
// is removed upstream and this only sums what is still held.
func Aggregate(trades []domain.Trade) (map[string]domain.PositionAggregate, error) {
	var sawTest, sawLive bool
	aggs := make(map[string]domain.PositionAggregate)

	for _, t := range trades {
		if t.IsCorrupted {
			continue
		}
		if t.IsTestMode {
			sawTest = true
		} else {
			sawLive = true
		}
		if sawTest && sawLive {
			return nil, domain.ErrMixedModes
		}
		if t.Side != domain.TradeSideBuy {
			continue
		}
		if t.Amount <= 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
			return nil, domain.NewValidationError("amount", "trade %d: must be a positive finite number, got %v", t.ID, t.Amount)
		}
		if t.Fees < 0 || math.IsNaN(t.Fees) || math.IsInf(t.Fees, 0) {
			return nil, domain.NewValidationError("fees", "trade %d: must be a non-negative finite number, got %v", t.ID, t.Fees)
		}
		if math.IsNaN(t.TotalValue) || math.IsInf(t.TotalValue, 0) {
			return nil, domain.NewValidationError("total_value", "trade %d: must be finite, got %v", t.ID, t.TotalValue)
		}

		base := domain.BaseSymbol(t.Symbol)
		agg := aggs[base]
		agg.Symbol = base
		agg.TotalAmount += t.Amount
		agg.TotalCostBasis += t.TotalValue + t.Fees
		aggs[base] = agg
	}

	// Zero-amount aggregates would divide by zero downstream.
	for sym, agg := range aggs {
		if agg.TotalAmount == 0 {
			delete(aggs, sym)
		}
	}
	return aggs, nil
}
