package readiness

import "github.com/alanyoungcy/portfolio-engine/internal/domain"

// Derive projects the readiness state from a validated fact tuple. It is a
// pure function evaluated in strict order; states are never hand-set and
// never persisted.
//
// Rules acceptance and an active panic halt both land in NO_CAPITAL: they
// share the "not yet ready" bucket but are independently checkable and
// independently satisfiable. PanicActive additionally blocks live trading
// no matter how funded the account is.
func Derive(facts domain.ReadinessFacts) domain.ReadinessState {
	switch {
	case !facts.WalletExists:
		return domain.ReadinessNoWallet
	case !facts.HasPortfolioCapital:
		return domain.ReadinessNoCapital
	case !facts.RulesAccepted:
		return domain.ReadinessNoCapital
	case facts.PanicActive:
		return domain.ReadinessNoCapital
	default:
		return domain.ReadinessReady
	}
}

// DeriveFrom folds the fact-fetch outcome into a state. Any fetch or shape
// validation failure is ERROR: the gate fails closed, never open.
func DeriveFrom(facts domain.ReadinessFacts, err error) domain.ReadinessState {
	if err != nil {
		return domain.ReadinessError
	}
	return Derive(facts)
}
