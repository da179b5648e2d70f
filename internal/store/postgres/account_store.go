package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns one account by id.
func (s *AccountStore) Get(ctx context.Context, accountID string) (domain.Account, error) {
	const query = `
		SELECT id, wallet_address, cash_test_eur, cash_live_eur,
		       rules_accepted, panic_active, created_at, updated_at
		FROM accounts WHERE id = $1`

	var a domain.Account
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&a.ID, &a.WalletAddress, &a.CashTestEur, &a.CashLiveEur,
		&a.RulesAccepted, &a.PanicActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", accountID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", accountID, err)
	}
	return a, nil
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, wallet_address, cash_test_eur, cash_live_eur, rules_accepted, panic_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		a.ID, a.WalletAddress, a.CashTestEur, a.CashLiveEur, a.RulesAccepted, a.PanicActive)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create account %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// SetWalletAddress records the address handed back by the external custody
// service. The engine never sees key material.
func (s *AccountStore) SetWalletAddress(ctx context.Context, accountID, address string) error {
	return s.setField(ctx, accountID, "wallet_address", address)
}

// SetRulesAccepted flips the trading-rules acceptance flag.
func (s *AccountStore) SetRulesAccepted(ctx context.Context, accountID string, accepted bool) error {
	return s.setField(ctx, accountID, "rules_accepted", accepted)
}

// SetPanicActive sets or clears the panic halt flag.
func (s *AccountStore) SetPanicActive(ctx context.Context, accountID string, active bool) error {
	return s.setField(ctx, accountID, "panic_active", active)
}

func (s *AccountStore) setField(ctx context.Context, accountID, column string, value any) error {
	query := fmt.Sprintf(
		`UPDATE accounts SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	tag, err := s.pool.Exec(ctx, query, value, accountID)
	if err != nil {
		return fmt.Errorf("postgres: set account %s %s: %w", accountID, column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set account %s %s: %w", accountID, column, domain.ErrNotFound)
	}
	return nil
}

// AdjustCash applies a signed delta to one mode's cash balance.
func (s *AccountStore) AdjustCash(ctx context.Context, accountID string, mode domain.Mode, deltaEur float64) error {
	column := "cash_test_eur"
	if mode == domain.ModeLive {
		column = "cash_live_eur"
	}
	query := fmt.Sprintf(
		`UPDATE accounts SET %s = %s + $1, updated_at = NOW() WHERE id = $2`, column, column)
	tag, err := s.pool.Exec(ctx, query, deltaEur, accountID)
	if err != nil {
		return fmt.Errorf("postgres: adjust %s cash for %s: %w", mode, accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: adjust %s cash for %s: %w", mode, accountID, domain.ErrNotFound)
	}
	return nil
}
