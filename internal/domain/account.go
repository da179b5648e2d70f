package domain

import "time"

// Account is the engine's view of a dashboard account: per-mode cash
// balances, the externally custodied wallet address, and the flags that feed
// the readiness gate. Key material never appears here; the custody service
// only ever hands back an address.
type Account struct {
	ID            string
	WalletAddress string // empty until the custody service has registered one
	CashTestEur   float64
	CashLiveEur   float64
	RulesAccepted bool
	PanicActive   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CashEur returns the cash balance for the given bookkeeping mode.
func (a Account) CashEur(mode Mode) float64 {
	if mode == ModeLive {
		return a.CashLiveEur
	}
	return a.CashTestEur
}
