package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest quotes.
type PriceCache interface {
	SetQuote(ctx context.Context, q PriceQuote) error
	GetQuote(ctx context.Context, symbol string) (PriceQuote, error)
	SetAll(ctx context.Context, prices PriceMap) error
	GetAll(ctx context.Context, symbols []string) (PriceMap, error)
}

// SnapshotCache keeps the last successful valuation and wallet snapshots so
// a transient upstream failure serves stale-but-valid data instead of
// presenting as "no data".
type SnapshotCache interface {
	SetValuation(ctx context.Context, snap ValuationSnapshot) error
	GetValuation(ctx context.Context, accountID string, mode Mode) (ValuationSnapshot, error)
	SetWalletBalance(ctx context.Context, accountID string, snap WalletBalanceSnapshot) error
	GetWalletBalance(ctx context.Context, accountID string) (WalletBalanceSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking, used to enforce at-most-one
// in-flight upstream fetch per source per account across replicas.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub used to push engine updates to the dashboard.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
