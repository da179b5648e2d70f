package valuation

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// CalculatorConfig configures the valuation calculator.
type CalculatorConfig struct {
	// GasPerTxEur is the fixed per-transaction cost estimate; each
	// ledger-recorded trade counts as exactly one transaction.
	GasPerTxEur float64
}

// Calculator combines cash, aggregated positions, resolved prices, and
// accrued transaction costs into one valuation snapshot. It holds only
// configuration; Compute is side-effect-free and safe to call concurrently
// for different accounts.
type Calculator struct {
	cfg    CalculatorConfig
	logger *slog.Logger
}

// NewCalculator creates a valuation calculator.
func NewCalculator(cfg CalculatorConfig, logger *slog.Logger) *Calculator {
	return &Calculator{cfg: cfg, logger: logger.With(slog.String("component", "valuation_calculator"))}
}

// Compute derives the valuation snapshot for one account and mode.
//
// Positions with no resolvable price are excluded from both position value
// and unrealized P&L and listed in MissingSymbols: mixing priced live value
// with unpriced cost basis would silently distort P&L. Missing data is not
// an error; only malformed input is.
//
// The result always satisfies
// TotalPortfolioValueEur = CashEur + UnrealizedPnlEur - GasSpentEur.
func (c *Calculator) Compute(accountID string, mode domain.Mode, cashEur float64, aggs map[string]domain.PositionAggregate, prices domain.PriceMap, gasTxCount int) (domain.ValuationSnapshot, error) {
	if math.IsNaN(cashEur) || math.IsInf(cashEur, 0) {
		return domain.ValuationSnapshot{}, domain.NewValidationError("cash_eur", "must be finite, got %v", cashEur)
	}
	if gasTxCount < 0 {
		return domain.ValuationSnapshot{}, domain.NewValidationError("gas_tx_count", "must be >= 0, got %d", gasTxCount)
	}

	snap := domain.ValuationSnapshot{
		AccountID:  accountID,
		Mode:       mode,
		CashEur:    cashEur,
		ComputedAt: time.Now().UTC(),
	}

	var pricesAsOf time.Time
	for _, agg := range aggs {
		if agg.TotalAmount <= 0 || math.IsNaN(agg.TotalAmount) || math.IsInf(agg.TotalAmount, 0) {
			return domain.ValuationSnapshot{}, domain.NewValidationError("total_amount", "%s: must be a positive finite number, got %v", agg.Symbol, agg.TotalAmount)
		}
		if math.IsNaN(agg.TotalCostBasis) || math.IsInf(agg.TotalCostBasis, 0) {
			return domain.ValuationSnapshot{}, domain.NewValidationError("total_cost_basis", "%s: must be finite, got %v", agg.Symbol, agg.TotalCostBasis)
		}
		q, ok := Resolve(agg.Symbol, prices)
		if !ok {
			snap.MissingSymbols = append(snap.MissingSymbols, agg.Symbol)
			continue
		}
		liveValue := agg.TotalAmount * q.Price
		snap.OpenPositionsValueEur += liveValue
		snap.UnrealizedPnlEur += liveValue - agg.TotalCostBasis
		if q.AsOf.After(pricesAsOf) {
			pricesAsOf = q.AsOf
		}
	}
	sort.Strings(snap.MissingSymbols)

	snap.GasSpentEur = float64(gasTxCount) * c.cfg.GasPerTxEur
	snap.TotalPortfolioValueEur = snap.CashEur + snap.UnrealizedPnlEur - snap.GasSpentEur
	snap.HasMissingPrices = len(snap.MissingSymbols) > 0
	snap.PricesAsOf = pricesAsOf

	if snap.HasMissingPrices {
		c.logger.Warn("partial valuation",
			slog.String("account_id", accountID),
			slog.String("mode", string(mode)),
			slog.Any("missing_symbols", snap.MissingSymbols),
		)
	}
	return snap, nil
}
