package domain

import (
	"context"
	"time"
)

// ListOpts carries standard pagination and time-range filters.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists the trade ledger. Trades are append-only; the only
// mutations allowed are the corruption annotation and the explicit
// test-mode reset.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) (int64, error)
	// ListOpen returns the open, non-corrupted trades for one account and
	// mode, i.e. exactly the set the aggregator may consume.
	ListOpen(ctx context.Context, accountID string, mode Mode) ([]Trade, error)
	// Count returns the number of ledger-recorded trades for one account
	// and mode, open or closed. Gas accrual charges one transaction per
	// recorded trade.
	Count(ctx context.Context, accountID string, mode Mode) (int, error)
	MarkCorrupted(ctx context.Context, tradeID int64) error
	// DeleteTestTrades wipes an account's test-mode ledger. Live trades are
	// never deleted. Returns the number of trades removed.
	DeleteTestTrades(ctx context.Context, accountID string) (int64, error)
	// ListBefore returns the trades closed before the cutoff. Open trades
	// are never archivable: they back current exposure and the gas count.
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	// DeleteBefore prunes the trades closed before the cutoff, the same set
	// ListBefore returns. Only the archiver calls it, after verifying the
	// upload.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AccountStore persists accounts and the flags feeding the readiness gate.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (Account, error)
	Create(ctx context.Context, a Account) error
	SetWalletAddress(ctx context.Context, accountID, address string) error
	SetRulesAccepted(ctx context.Context, accountID string, accepted bool) error
	SetPanicActive(ctx context.Context, accountID string, active bool) error
	AdjustCash(ctx context.Context, accountID string, mode Mode, deltaEur float64) error
}

// ReportStore persists reconciliation reports so drift can be graphed over
// time and archived to cold storage.
type ReportStore interface {
	Insert(ctx context.Context, r ReconciliationReport) error
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]ReconciliationReport, error)
	ListBefore(ctx context.Context, before time.Time) ([]ReconciliationReport, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is one row of the append-only audit log.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore records operator-relevant events: gate decisions, panic
// clears, test resets, archive runs.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
