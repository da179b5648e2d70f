package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using Redis string keys
// with JSON payloads. Snapshots carry their own timestamps and never
// expire: when an upstream source goes down, the last good snapshot is
// served stale-but-valid instead of presenting as "no data". Only a
// successful fetch overwrites a snapshot.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

func valuationKey(accountID string, mode domain.Mode) string {
	return fmt.Sprintf("valuation:%s:%s", accountID, mode)
}

func walletKey(accountID string) string {
	return "wallet:" + accountID
}

// SetValuation stores the last good valuation snapshot for one account and
// mode.
func (sc *SnapshotCache) SetValuation(ctx context.Context, snap domain.ValuationSnapshot) error {
	return sc.setJSON(ctx, valuationKey(snap.AccountID, snap.Mode), snap)
}

// GetValuation returns the last good valuation snapshot, or
// domain.ErrNoSnapshot when none has ever been stored.
func (sc *SnapshotCache) GetValuation(ctx context.Context, accountID string, mode domain.Mode) (domain.ValuationSnapshot, error) {
	var snap domain.ValuationSnapshot
	if err := sc.getJSON(ctx, valuationKey(accountID, mode), &snap); err != nil {
		return domain.ValuationSnapshot{}, err
	}
	return snap, nil
}

// SetWalletBalance stores the last good wallet balance snapshot.
func (sc *SnapshotCache) SetWalletBalance(ctx context.Context, accountID string, snap domain.WalletBalanceSnapshot) error {
	return sc.setJSON(ctx, walletKey(accountID), snap)
}

// GetWalletBalance returns the last good wallet balance snapshot, or
// domain.ErrNoSnapshot when none has ever been stored.
func (sc *SnapshotCache) GetWalletBalance(ctx context.Context, accountID string) (domain.WalletBalanceSnapshot, error) {
	var snap domain.WalletBalanceSnapshot
	if err := sc.getJSON(ctx, walletKey(accountID), &snap); err != nil {
		return domain.WalletBalanceSnapshot{}, err
	}
	return snap, nil
}

func (sc *SnapshotCache) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", key, err)
	}
	if err := sc.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

func (sc *SnapshotCache) getJSON(ctx context.Context, key string, v any) error {
	data, err := sc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("redis: get snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: unmarshal snapshot %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
