package domain

import "time"

// PriceQuote is one live quote from the price feed. A quote with a
// non-positive or non-finite price is treated as absent by the resolver.
type PriceQuote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// PriceMap is the full symbol -> quote mapping returned by one price feed
// poll. Keys may be pair form ("BTC-EUR") or base form ("BTC").
type PriceMap map[string]PriceQuote

// ValuationSnapshot is the point-in-time statement of portfolio value. It is
// a reproducible view derived from the ledger; the ledger stays the source
// of truth and the snapshot is recomputed on every request.
//
// Invariant: TotalPortfolioValueEur = CashEur + UnrealizedPnlEur - GasSpentEur.
type ValuationSnapshot struct {
	AccountID             string    `json:"account_id"`
	Mode                  Mode      `json:"mode"`
	CashEur               float64   `json:"cash_eur"`
	OpenPositionsValueEur float64   `json:"open_positions_value_eur"`
	UnrealizedPnlEur      float64   `json:"unrealized_pnl_eur"`
	GasSpentEur           float64   `json:"gas_spent_eur"`
	TotalPortfolioValueEur float64  `json:"total_portfolio_value_eur"`
	MissingSymbols        []string  `json:"missing_symbols"`
	HasMissingPrices      bool      `json:"has_missing_prices"`
	PricesAsOf            time.Time `json:"prices_as_of"`
	ComputedAt            time.Time `json:"computed_at"`
	Stale                 bool      `json:"stale"`
}
