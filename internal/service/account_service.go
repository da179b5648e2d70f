package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/poller"
)

// AccountService handles the explicit, operator-visible account actions:
// rule acceptance, panic clearing, test-mode resets, and wallet address
// registration. Every mutation lands in the audit log.
type AccountService struct {
	accounts domain.AccountStore
	trades   domain.TradeStore
	audit    domain.AuditStore
	pollers  *poller.Registry
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewAccountService creates an AccountService with all required
// dependencies.
func NewAccountService(
	accounts domain.AccountStore,
	trades domain.TradeStore,
	audit domain.AuditStore,
	pollers *poller.Registry,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		trades:   trades,
		audit:    audit,
		pollers:  pollers,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "account_service")),
	}
}

// Get returns one account.
func (s *AccountService) Get(ctx context.Context, accountID string) (domain.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

// Create registers a new account with the given starting cash balances.
func (s *AccountService) Create(ctx context.Context, cashTestEur, cashLiveEur float64) (domain.Account, error) {
	if cashTestEur < 0 {
		return domain.Account{}, domain.NewValidationError("starting_cash_test_eur", "must not be negative")
	}
	if cashLiveEur < 0 {
		return domain.Account{}, domain.NewValidationError("starting_cash_live_eur", "must not be negative")
	}
	account := domain.Account{
		ID:          uuid.NewString(),
		CashTestEur: cashTestEur,
		CashLiveEur: cashLiveEur,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	s.auditLog(ctx, "account.created", map[string]any{
		"account_id":    account.ID,
		"cash_test_eur": cashTestEur,
		"cash_live_eur": cashLiveEur,
	})
	return account, nil
}

// AuditLog returns recent audit entries, newest first.
func (s *AccountService) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return s.audit.List(ctx, opts)
}

// RegisterWallet records the address handed back by the external custody
// service. Key material never passes through this engine.
func (s *AccountService) RegisterWallet(ctx context.Context, accountID, address string) error {
	if address == "" {
		return domain.NewValidationError("wallet_address", "must not be empty")
	}
	if err := s.accounts.SetWalletAddress(ctx, accountID, address); err != nil {
		return err
	}
	s.auditLog(ctx, "account.wallet_registered", map[string]any{
		"account_id": accountID,
		"address":    address,
	})
	return nil
}

// AcceptRules records the account's trading-rules acceptance.
func (s *AccountService) AcceptRules(ctx context.Context, accountID string) error {
	if err := s.accounts.SetRulesAccepted(ctx, accountID, true); err != nil {
		return err
	}
	s.auditLog(ctx, "account.rules_accepted", map[string]any{"account_id": accountID})
	return nil
}

// ActivatePanic raises the panic halt, blocking live trading regardless of
// how funded the account is.
func (s *AccountService) ActivatePanic(ctx context.Context, accountID, reason string) error {
	if err := s.accounts.SetPanicActive(ctx, accountID, true); err != nil {
		return err
	}
	s.auditLog(ctx, "account.panic_activated", map[string]any{
		"account_id": accountID,
		"reason":     reason,
	})
	if err := s.notifier.Notify(ctx, notify.EventPanicActive,
		"Panic halt activated",
		fmt.Sprintf("Account %s: live trading halted (%s)", accountID, reason),
	); err != nil {
		s.logger.WarnContext(ctx, "panic notify failed", slog.String("error", err.Error()))
	}
	return nil
}

// ClearPanic lifts the panic halt. It is a separately-authorized action:
// the caller must pass explicit confirmation, and funding or rule
// acceptance never clears it as a side effect.
func (s *AccountService) ClearPanic(ctx context.Context, accountID string, confirmed bool) error {
	if !confirmed {
		return domain.NewValidationError("confirm", "panic clear requires explicit confirmation")
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.PanicActive {
		return fmt.Errorf("account_service: account %s has no active panic: %w", accountID, domain.ErrNotFound)
	}
	if err := s.accounts.SetPanicActive(ctx, accountID, false); err != nil {
		return err
	}
	s.auditLog(ctx, "account.panic_cleared", map[string]any{"account_id": accountID})
	if err := s.notifier.Notify(ctx, notify.EventPanicCleared,
		"Panic halt cleared",
		fmt.Sprintf("Account %s: live trading may resume once the readiness gate is READY", accountID),
	); err != nil {
		s.logger.WarnContext(ctx, "panic clear notify failed", slog.String("error", err.Error()))
	}
	return nil
}

// ResetTestData wipes the account's test-mode ledger and restores the test
// cash balance to the given starting amount. Live data is never touched.
func (s *AccountService) ResetTestData(ctx context.Context, accountID string, startingCashEur float64) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}

	deleted, err := s.trades.DeleteTestTrades(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.accounts.AdjustCash(ctx, accountID, domain.ModeTest, startingCashEur-account.CashTestEur); err != nil {
		return err
	}

	s.auditLog(ctx, "account.test_reset", map[string]any{
		"account_id":     accountID,
		"trades_deleted": deleted,
		"cash_eur":       startingCashEur,
	})
	if err := s.notifier.Notify(ctx, notify.EventTestReset,
		"Test data reset",
		fmt.Sprintf("Account %s: %d test trades deleted, cash reset to %.2f EUR", accountID, deleted, startingCashEur),
	); err != nil {
		s.logger.WarnContext(ctx, "test reset notify failed", slog.String("error", err.Error()))
	}
	s.logger.InfoContext(ctx, "test data reset",
		slog.String("account_id", accountID),
		slog.Int64("trades_deleted", deleted),
	)
	return nil
}

// Logout cancels every scheduled poll for the account so no orphaned
// timers keep fetching with stale credentials.
func (s *AccountService) Logout(ctx context.Context, accountID string) {
	s.pollers.Drop(accountID)
	s.auditLog(ctx, "account.logout", map[string]any{"account_id": accountID})
}

// RecordTrade appends one executed trade to the ledger. The trade is
// validated first: a malformed row (negative or NaN amount) would not fail
// here, it would fail every later aggregation of the account, so it must
// never reach the store.
func (s *AccountService) RecordTrade(ctx context.Context, t domain.Trade) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := s.trades.Insert(ctx, t)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "trade recorded",
		slog.Int64("trade_id", id),
		slog.String("account_id", t.AccountID),
		slog.String("symbol", t.Symbol),
		slog.String("mode", string(t.Mode())),
	)
	return id, nil
}

// MarkTradeCorrupted annotates one trade as failing the external integrity
// check, excluding it from all valuation.
func (s *AccountService) MarkTradeCorrupted(ctx context.Context, tradeID int64) error {
	if err := s.trades.MarkCorrupted(ctx, tradeID); err != nil {
		return err
	}
	s.auditLog(ctx, "trade.marked_corrupted", map[string]any{"trade_id": tradeID})
	return nil
}

func (s *AccountService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
