package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// ReportStore implements domain.ReportStore using PostgreSQL. Reports are
// diagnostic history only: nothing here ever feeds back into the ledger.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a new ReportStore backed by the given connection pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

const reportSelectCols = `id, account_id, ledger_total_eur, wallet_total_eur,
	drift_eur, drift_pct, is_meaningful, coverage, uncovered_symbols,
	wallet_fetched_at, computed_at`

func scanReportRows(rows pgx.Rows) ([]domain.ReconciliationReport, error) {
	var reports []domain.ReconciliationReport
	for rows.Next() {
		var r domain.ReconciliationReport
		if err := rows.Scan(
			&r.ID, &r.AccountID, &r.LedgerTotalEur, &r.WalletTotalEur,
			&r.DriftEur, &r.DriftPct, &r.IsMeaningful, &r.Coverage,
			&r.UncoveredSymbols, &r.WalletFetchedAt, &r.ComputedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Insert stores one reconciliation report.
func (s *ReportStore) Insert(ctx context.Context, r domain.ReconciliationReport) error {
	const query = `
		INSERT INTO reconciliation_reports (
			id, account_id, ledger_total_eur, wallet_total_eur,
			drift_eur, drift_pct, is_meaningful, coverage,
			uncovered_symbols, wallet_fetched_at, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.AccountID, r.LedgerTotalEur, r.WalletTotalEur,
		r.DriftEur, r.DriftPct, r.IsMeaningful, r.Coverage,
		r.UncoveredSymbols, r.WalletFetchedAt, r.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert reconciliation report: %w", err)
	}
	return nil
}

// ListByAccount returns an account's reports, newest first, with pagination
// and optional time filtering.
func (s *ReportStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.ReconciliationReport, error) {
	query := `SELECT ` + reportSelectCols + ` FROM reconciliation_reports WHERE account_id = $1`
	args := []any{accountID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND computed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND computed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY computed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports by account: %w", err)
	}
	defer rows.Close()

	reports, err := scanReportRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan reports by account: %w", err)
	}
	return reports, nil
}

// ListBefore returns all reports computed strictly before the given time
// (for archiving).
func (s *ReportStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ReconciliationReport, error) {
	query := `SELECT ` + reportSelectCols + ` FROM reconciliation_reports WHERE computed_at < $1 ORDER BY computed_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports before: %w", err)
	}
	defer rows.Close()
	return scanReportRows(rows)
}

// DeleteBefore deletes all reports computed before the given time. Returns
// the number deleted.
func (s *ReportStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reconciliation_reports WHERE computed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete reports before: %w", err)
	}
	return tag.RowsAffected(), nil
}
