package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/poller"
	"github.com/alanyoungcy/portfolio-engine/internal/reconcile"
)

// ReconcileService answers GetReconciliation requests: it keeps per-account
// wallet snapshots fresh through the poller, compares the live-mode ledger
// value against on-chain reality, and records every report. It is strictly
// diagnostic; nothing here writes to the ledger.
type ReconcileService struct {
	accounts   domain.AccountStore
	reports    domain.ReportStore
	snapshots  domain.SnapshotCache
	wallets    domain.WalletSource
	reconciler *reconcile.Reconciler
	valuations *ValuationService
	pollers    *poller.Registry
	pollCfg    poller.Config
	bus        domain.SignalBus
	notifier   *notify.Notifier
	logger     *slog.Logger
}

// NewReconcileService creates a ReconcileService with all required
// dependencies.
func NewReconcileService(
	accounts domain.AccountStore,
	reports domain.ReportStore,
	snapshots domain.SnapshotCache,
	wallets domain.WalletSource,
	reconciler *reconcile.Reconciler,
	valuations *ValuationService,
	pollers *poller.Registry,
	pollCfg poller.Config,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		accounts:   accounts,
		reports:    reports,
		snapshots:  snapshots,
		wallets:    wallets,
		reconciler: reconciler,
		valuations: valuations,
		pollers:    pollers,
		pollCfg:    pollCfg,
		bus:        bus,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "reconcile_service")),
	}
}

// walletPoller lazily registers the balance poller for one account's
// wallet address. Dropping the account from the registry cancels it.
func (s *ReconcileService) walletPoller(accountID, address string) *poller.Poller {
	return s.pollers.Ensure(accountID, "wallet", s.pollCfg, func(ctx context.Context) error {
		snap, err := s.wallets.FetchBalances(ctx, address)
		if err != nil {
			return fmt.Errorf("reconcile_service: fetch wallet balances: %w", err)
		}
		if err := s.snapshots.SetWalletBalance(ctx, accountID, snap); err != nil {
			return fmt.Errorf("reconcile_service: cache wallet snapshot: %w", err)
		}
		return nil
	})
}

// RefreshWallet forces one immediate wallet balance poll for the account,
// bypassing the minimum interval exactly once.
func (s *ReconcileService) RefreshWallet(ctx context.Context, accountID string) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("reconcile_service: load account: %w", err)
	}
	if account.WalletAddress == "" {
		return fmt.Errorf("reconcile_service: account %s has no wallet address: %w", accountID, domain.ErrNotFound)
	}
	p := s.walletPoller(accountID, account.WalletAddress)
	p.Force()
	err = p.Poll(ctx)
	if errors.Is(err, domain.ErrPollInFlight) || errors.Is(err, poller.ErrIntervalNotElapsed) {
		return nil
	}
	return err
}

// GetReconciliation compares the live-mode ledger value against the
// account's on-chain wallet snapshot and returns the drift report. The
// comparison uses one consistent wallet snapshot and one consistent ledger
// valuation, never partially-updated fields from concurrent fetches.
func (s *ReconcileService) GetReconciliation(ctx context.Context, accountID string) (domain.ReconciliationReport, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.ReconciliationReport{}, fmt.Errorf("reconcile_service: load account: %w", err)
	}
	if account.WalletAddress == "" {
		return domain.ReconciliationReport{}, fmt.Errorf("reconcile_service: account %s has no wallet address: %w", accountID, domain.ErrNotFound)
	}

	// Opportunistic poll; skips are normal.
	if err := s.walletPoller(accountID, account.WalletAddress).Poll(ctx); err != nil &&
		!errors.Is(err, domain.ErrPollInFlight) && !errors.Is(err, poller.ErrIntervalNotElapsed) {
		s.logger.WarnContext(ctx, "wallet poll failed, reconciling against last snapshot",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}

	wallet, err := s.snapshots.GetWalletBalance(ctx, accountID)
	if err != nil {
		return domain.ReconciliationReport{}, fmt.Errorf("reconcile_service: no wallet snapshot for %s: %w", accountID, err)
	}

	// On-chain reality only ever backs real money, so the ledger side is
	// always the live-mode valuation.
	snap, err := s.valuations.GetValuation(ctx, accountID, domain.ModeLive)
	if err != nil {
		return domain.ReconciliationReport{}, fmt.Errorf("reconcile_service: ledger valuation: %w", err)
	}
	symbols, err := s.valuations.OpenSymbols(ctx, accountID, domain.ModeLive)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	report, err := s.reconciler.Reconcile(accountID, snap.TotalPortfolioValueEur, wallet, symbols)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	if err := s.reports.Insert(ctx, report); err != nil {
		s.logger.WarnContext(ctx, "store reconciliation report failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
	s.publish(ctx, report)

	if report.IsMeaningful {
		if nErr := s.notifier.Notify(ctx, notify.EventDriftDetected,
			"Ledger/wallet drift",
			fmt.Sprintf("Account %s: drift %.2f EUR (%.2f%%), coverage %s",
				accountID, report.DriftEur, report.DriftPct, report.Coverage),
		); nErr != nil {
			s.logger.WarnContext(ctx, "drift notify failed", slog.String("error", nErr.Error()))
		}
	}
	return report, nil
}

// History returns an account's stored reconciliation reports, newest first.
func (s *ReconcileService) History(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.ReconciliationReport, error) {
	reports, err := s.reports.ListByAccount(ctx, accountID, opts)
	if err != nil {
		return nil, fmt.Errorf("reconcile_service: list reports: %w", err)
	}
	return reports, nil
}

func (s *ReconcileService) publish(ctx context.Context, report domain.ReconciliationReport) {
	evt, _ := json.Marshal(map[string]any{
		"event":      "reconciliation_computed",
		"account_id": report.AccountID,
		"drift_eur":  report.DriftEur,
		"drift_pct":  report.DriftPct,
		"meaningful": report.IsMeaningful,
		"coverage":   string(report.Coverage),
	})
	if err := s.bus.Publish(ctx, "reconciliations", evt); err != nil {
		s.logger.WarnContext(ctx, "publish reconciliation event failed",
			slog.String("account_id", report.AccountID),
			slog.String("error", err.Error()),
		)
	}
}
