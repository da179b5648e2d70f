package domain

import "time"

// TokenBalance is one token's holding inside a wallet balance snapshot, with
// its EUR valuation already computed by the balance source.
type TokenBalance struct {
	Symbol   string  `json:"symbol"`
	Amount   float64 `json:"amount"`
	ValueEur float64 `json:"value_eur"`
}

// WalletBalanceSnapshot is the independently observed on-chain state of an
// account's external wallet. It only covers a fixed token allow-list and is
// read-only from the engine's perspective.
type WalletBalanceSnapshot struct {
	Address       string         `json:"address"`
	Tokens        []TokenBalance `json:"tokens"`
	TotalValueEur float64        `json:"total_value_eur"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

// Coverage says whether a reconciliation compared the full ledger against
// the wallet view or only the allow-listed part of it.
type Coverage string

const (
	CoverageFull    Coverage = "full"
	CoveragePartial Coverage = "partial"
)

// DriftMaterialityEur is the threshold below which drift is considered
// floating-point noise rather than an anomaly.
const DriftMaterialityEur = 0.01

// ReconciliationReport is the diagnostic comparison of ledger value against
// on-chain reality. Positive drift means the wallet holds more value than
// the ledger accounts for. The report never feeds back into the ledger.
type ReconciliationReport struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	LedgerTotalEur   float64   `json:"ledger_total_eur"`
	WalletTotalEur   float64   `json:"wallet_total_eur"`
	DriftEur         float64   `json:"drift_eur"`
	DriftPct         float64   `json:"drift_pct"`
	IsMeaningful     bool      `json:"is_meaningful"`
	Coverage         Coverage  `json:"coverage"`
	UncoveredSymbols []string  `json:"uncovered_symbols"`
	WalletFetchedAt  time.Time `json:"wallet_fetched_at"`
	ComputedAt       time.Time `json:"computed_at"`
}
