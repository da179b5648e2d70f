package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode separates paper-money and real-money bookkeeping. Trades, cash
// balances, and valuations from different modes must never be combined.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTest:
		return ModeTest, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown mode %q (valid: test, live)", s)
	}
}

// TradeSide is the direction of an executed order.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is a single executed order as recorded in the ledger. Trades are
// immutable once recorded; the only lifecycle end is an explicit test-mode
// reset. IsCorrupted is an annotation set by an external integrity check and
// excludes the trade from all valuation.
type Trade struct {
	ID          int64
	AccountID   string
	Symbol      string // exchange-native form, e.g. "BTC" or "BTC-EUR"
	Side        TradeSide
	Amount      float64 // base-asset quantity, > 0
	TotalValue  float64 // quote-currency value at execution
	Fees        float64 // quote-currency, >= 0
	ExecutedAt  time.Time
	ClosedAt    *time.Time // set when the exposure is closed out; nil while open
	IsTestMode  bool
	IsCorrupted bool
}

// Validate checks a candidate ledger entry at the recording boundary.
// Stored rows are re-checked during aggregation, but a malformed trade must
// be rejected before it reaches the ledger: once inserted it would fail
// every subsequent aggregation of the account.
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return NewValidationError("symbol", "must not be empty")
	}
	switch t.Side {
	case TradeSideBuy, TradeSideSell:
	default:
		return NewValidationError("side", "must be %q or %q", TradeSideBuy, TradeSideSell)
	}
	if t.Amount <= 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return NewValidationError("amount", "must be a positive finite number, got %v", t.Amount)
	}
	if t.Fees < 0 || math.IsNaN(t.Fees) || math.IsInf(t.Fees, 0) {
		return NewValidationError("fees", "must be a non-negative finite number, got %v", t.Fees)
	}
	if math.IsNaN(t.TotalValue) || math.IsInf(t.TotalValue, 0) {
		return NewValidationError("total_value", "must be finite, got %v", t.TotalValue)
	}
	return nil
}

// Mode returns the bookkeeping mode the trade belongs to.
func (t Trade) Mode() Mode {
	if t.IsTestMode {
		return ModeTest
	}
	return ModeLive
}

// BaseSymbol strips a quote-currency suffix from a pair symbol, so "BTC-EUR"
// and "BTC" aggregate into the same position.
func BaseSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	for _, suffix := range []string{"-EUR", "-USD", "-USDT", "-USDC"} {
		if strings.HasSuffix(strings.ToUpper(s), suffix) {
			return s[:len(s)-len(suffix)]
		}
	}
	return s
}

// PositionAggregate is the derived open exposure in one base asset. It is
// never persisted; it is recomputed from the ledger on every valuation.
type PositionAggregate struct {
	Symbol         string
	TotalAmount    float64
	TotalCostBasis float64 // sum of totalValue + fees across contributing buys
}

// EntryPrice returns the weighted-average acquisition price. Only valid when
// TotalAmount > 0; aggregates with zero amount are dropped upstream.
func (p PositionAggregate) EntryPrice() float64 {
	if p.TotalAmount <= 0 {
		return 0
	}
	return p.TotalCostBasis / p.TotalAmount
}
