package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. The trades
// table is the ledger: the source of truth every valuation is recomputed
// from. Rows are append-only; the only updates are the corruption
// annotation and closing, and the only deletes are the explicit test-mode
// reset and cold-storage archival of closed rows.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, account_id, symbol, side, amount, total_value,
	fees, executed_at, closed_at, is_test_mode, is_corrupted`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Symbol, &t.Side, &t.Amount,
			&t.TotalValue, &t.Fees, &t.ExecutedAt, &t.ClosedAt, &t.IsTestMode, &t.IsCorrupted,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records one executed trade and returns its ledger id.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) (int64, error) {
	const query = `
		INSERT INTO trades (
			account_id, symbol, side, amount, total_value,
			fees, executed_at, is_test_mode
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		t.AccountID, t.Symbol, t.Side, t.Amount, t.TotalValue,
		t.Fees, t.ExecutedAt, t.IsTestMode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert trade: %w", err)
	}
	return id, nil
}

// ListOpen returns the open, non-corrupted trades for one account and mode,
// i.e. exactly the set the aggregator may consume.
func (s *TradeStore) ListOpen(ctx context.Context, accountID string, mode domain.Mode) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades
		WHERE account_id = $1
		  AND is_test_mode = $2
		  AND is_corrupted = FALSE
		  AND closed_at IS NULL
		ORDER BY executed_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, accountID, mode == domain.ModeTest)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open trades: %w", err)
	}
	return trades, nil
}

// Count returns the number of ledger-recorded trades for one account and
// mode, open or closed.
func (s *TradeStore) Count(ctx context.Context, accountID string, mode domain.Mode) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE account_id = $1 AND is_test_mode = $2`,
		accountID, mode == domain.ModeTest,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count trades: %w", err)
	}
	return count, nil
}

// MarkCorrupted annotates a trade as failing the external integrity check.
// The trade stays in the ledger but is excluded from all valuation.
func (s *TradeStore) MarkCorrupted(ctx context.Context, tradeID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET is_corrupted = TRUE WHERE id = $1`, tradeID)
	if err != nil {
		return fmt.Errorf("postgres: mark trade %d corrupted: %w", tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark trade %d corrupted: %w", tradeID, domain.ErrNotFound)
	}
	return nil
}

// DeleteTestTrades wipes an account's test-mode ledger. Live trades are
// never touched.
func (s *TradeStore) DeleteTestTrades(ctx context.Context, accountID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades WHERE account_id = $1 AND is_test_mode = TRUE`, accountID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete test trades: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBefore returns the trades closed strictly before the given time, for
// archiving. Open rows never qualify: the ledger row behind live exposure
// stays in the primary store no matter how old it is.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades
		WHERE closed_at IS NOT NULL AND closed_at < $1
		ORDER BY executed_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteBefore deletes the trades closed before the given time, mirroring
// the ListBefore filter. Returns the number deleted. Only the archiver
// calls this, after verifying the upload.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades WHERE closed_at IS NOT NULL AND closed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}
