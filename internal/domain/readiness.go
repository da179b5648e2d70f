package domain

// ReadinessState is the single gate consulted before live trading is
// enabled. It is a pure projection of current prerequisite facts, re-derived
// on every check and never persisted.
type ReadinessState string

const (
	ReadinessNoWallet  ReadinessState = "NO_WALLET"
	ReadinessNoCapital ReadinessState = "NO_CAPITAL"
	ReadinessReady     ReadinessState = "READY"
	ReadinessError     ReadinessState = "ERROR"
)

// ReadinessFacts is the validated boolean tuple the state machine projects
// from. A facts value only exists once the upstream response has passed
// shape validation; anything malformed maps to ReadinessError upstream.
type ReadinessFacts struct {
	WalletExists        bool `json:"wallet_exists"`
	HasPortfolioCapital bool `json:"has_portfolio_capital"`
	RulesAccepted       bool `json:"rules_accepted"`
	PanicActive         bool `json:"panic_active"`
}
