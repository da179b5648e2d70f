package domain

import "context"

// PriceSource fetches the current quote map from the external price feed.
// Implementations return the feed's payload as-is; filtering of unusable
// quotes is the resolver's job.
type PriceSource interface {
	FetchPrices(ctx context.Context) (PriceMap, error)
}

// WalletSource observes the on-chain balances of an external wallet for the
// configured token allow-list.
type WalletSource interface {
	FetchBalances(ctx context.Context, address string) (WalletBalanceSnapshot, error)
}

// PrereqSource fetches the prerequisite facts the readiness gate projects
// from. Implementations must shape-validate the upstream response and return
// a ValidationError when any required field is missing or mistyped, never a
// guessed default.
type PrereqSource interface {
	FetchFacts(ctx context.Context, accountID string) (ReadinessFacts, error)
}
