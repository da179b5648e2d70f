package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/poller"
	"github.com/alanyoungcy/portfolio-engine/internal/valuation"
)

// priceLockTTL bounds how long one replica may hold the price poll lock.
const priceLockTTL = 30 * time.Second

// ValuationService answers GetValuation requests: it keeps the price cache
// warm through the poller, recomputes the snapshot from the ledger on every
// request, and falls back to the last good snapshot when an upstream source
// is down.
type ValuationService struct {
	trades     domain.TradeStore
	accounts   domain.AccountStore
	prices     domain.PriceCache
	snapshots  domain.SnapshotCache
	source     domain.PriceSource
	calc       *valuation.Calculator
	pollers    *poller.Registry
	pollCfg    poller.Config
	locks      domain.LockManager
	bus        domain.SignalBus
	notifier   *notify.Notifier
	logger     *slog.Logger
}

// NewValuationService creates a ValuationService with all required
// dependencies.
func NewValuationService(
	trades domain.TradeStore,
	accounts domain.AccountStore,
	prices domain.PriceCache,
	snapshots domain.SnapshotCache,
	source domain.PriceSource,
	calc *valuation.Calculator,
	pollers *poller.Registry,
	pollCfg poller.Config,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ValuationService {
	return &ValuationService{
		trades:    trades,
		accounts:  accounts,
		prices:    prices,
		snapshots: snapshots,
		source:    source,
		calc:      calc,
		pollers:   pollers,
		pollCfg:   pollCfg,
		locks:     locks,
		bus:       bus,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "valuation_service")),
	}
}

// fetchPrices is the poll body for the shared price feed. The distributed
// lock keeps at most one replica fetching at a time; losing the race is not
// an error since the winner fills the shared cache.
func (s *ValuationService) fetchPrices(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, "poll:prices", priceLockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("valuation_service: acquire price lock: %w", err)
	}
	defer unlock()

	prices, err := s.source.FetchPrices(ctx)
	if err != nil {
		return fmt.Errorf("valuation_service: fetch prices: %w", err)
	}
	if err := s.prices.SetAll(ctx, prices); err != nil {
		return fmt.Errorf("valuation_service: cache prices: %w", err)
	}
	return nil
}

// pricePoller lazily registers the shared price feed poller. The feed is
// account-independent, so a single registry slot serves all accounts.
func (s *ValuationService) pricePoller() *poller.Poller {
	return s.pollers.Ensure("shared", "prices", s.pollCfg, s.fetchPrices)
}

// RefreshPrices forces one immediate price poll, bypassing the minimum
// interval exactly once. Used by the manual refresh endpoint.
func (s *ValuationService) RefreshPrices(ctx context.Context) error {
	p := s.pricePoller()
	p.Force()
	err := p.Poll(ctx)
	if errors.Is(err, domain.ErrPollInFlight) || errors.Is(err, poller.ErrIntervalNotElapsed) {
		return nil
	}
	return err
}

// GetValuation recomputes the valuation snapshot for one account and mode.
// The ledger stays the source of truth; the snapshot is a reproducible
// view, never read back as authority. When the ledger or account store is
// unreachable, the last good snapshot is served with Stale set.
func (s *ValuationService) GetValuation(ctx context.Context, accountID string, mode domain.Mode) (domain.ValuationSnapshot, error) {
	// Opportunistic poll; skips are normal.
	if err := s.pricePoller().Poll(ctx); err != nil &&
		!errors.Is(err, domain.ErrPollInFlight) && !errors.Is(err, poller.ErrIntervalNotElapsed) {
		s.logger.WarnContext(ctx, "price poll failed, valuing from cached quotes",
			slog.String("error", err.Error()),
		)
	}

	snap, err := s.computeFresh(ctx, accountID, mode)
	if err != nil {
		if domain.IsValidation(err) || errors.Is(err, domain.ErrMixedModes) || errors.Is(err, domain.ErrNotFound) {
			return domain.ValuationSnapshot{}, err
		}
		return s.staleFallback(ctx, accountID, mode, err)
	}

	if cacheErr := s.snapshots.SetValuation(ctx, snap); cacheErr != nil {
		s.logger.WarnContext(ctx, "store valuation snapshot failed",
			slog.String("account_id", accountID),
			slog.String("error", cacheErr.Error()),
		)
	}
	s.publish(ctx, snap)

	if snap.HasMissingPrices {
		if nErr := s.notifier.Notify(ctx, notify.EventPartialValuation,
			"Partial valuation",
			fmt.Sprintf("Account %s (%s): no price for %v", accountID, mode, snap.MissingSymbols),
		); nErr != nil {
			s.logger.WarnContext(ctx, "partial valuation notify failed", slog.String("error", nErr.Error()))
		}
	}
	return snap, nil
}

// OpenSymbols returns the base symbols with open exposure for one account
// and mode. The reconciler uses this to judge wallet coverage.
func (s *ValuationService) OpenSymbols(ctx context.Context, accountID string, mode domain.Mode) ([]string, error) {
	trades, err := s.trades.ListOpen(ctx, accountID, mode)
	if err != nil {
		return nil, fmt.Errorf("valuation_service: list open trades: %w", err)
	}
	aggs, err := valuation.Aggregate(trades)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(aggs))
	for sym := range aggs {
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

func (s *ValuationService) computeFresh(ctx context.Context, accountID string, mode domain.Mode) (domain.ValuationSnapshot, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.ValuationSnapshot{}, fmt.Errorf("valuation_service: load account: %w", err)
	}
	trades, err := s.trades.ListOpen(ctx, accountID, mode)
	if err != nil {
		return domain.ValuationSnapshot{}, fmt.Errorf("valuation_service: list open trades: %w", err)
	}
	gasTxCount, err := s.trades.Count(ctx, accountID, mode)
	if err != nil {
		return domain.ValuationSnapshot{}, fmt.Errorf("valuation_service: count trades: %w", err)
	}

	aggs, err := valuation.Aggregate(trades)
	if err != nil {
		return domain.ValuationSnapshot{}, err
	}

	prices, err := s.prices.GetAll(ctx, lookupKeys(aggs))
	if err != nil {
		return domain.ValuationSnapshot{}, fmt.Errorf("valuation_service: load cached quotes: %w", err)
	}

	return s.calc.Compute(accountID, mode, account.CashEur(mode), aggs, prices, gasTxCount)
}

// staleFallback serves the last good snapshot when fresh computation hit an
// infrastructure failure. The snapshot keeps its original timestamps so the
// caller can see how old it is.
func (s *ValuationService) staleFallback(ctx context.Context, accountID string, mode domain.Mode, cause error) (domain.ValuationSnapshot, error) {
	snap, err := s.snapshots.GetValuation(ctx, accountID, mode)
	if err != nil {
		return domain.ValuationSnapshot{}, fmt.Errorf("valuation_service: no fallback snapshot (%v): %w", err, cause)
	}
	s.logger.WarnContext(ctx, "serving stale valuation snapshot",
		slog.String("account_id", accountID),
		slog.String("mode", string(mode)),
		slog.Time("computed_at", snap.ComputedAt),
		slog.String("cause", cause.Error()),
	)
	snap.Stale = true
	return snap, nil
}

func (s *ValuationService) publish(ctx context.Context, snap domain.ValuationSnapshot) {
	evt, _ := json.Marshal(map[string]any{
		"event":      "valuation_updated",
		"account_id": snap.AccountID,
		"mode":       string(snap.Mode),
		"total_eur":  snap.TotalPortfolioValueEur,
		"partial":    snap.HasMissingPrices,
		"stale":      snap.Stale,
	})
	if err := s.bus.Publish(ctx, "valuations", evt); err != nil {
		s.logger.WarnContext(ctx, "publish valuation event failed",
			slog.String("account_id", snap.AccountID),
			slog.String("error", err.Error()),
		)
	}
}

// lookupKeys expands aggregate symbols to the cache keys the resolver may
// try: the base symbol plus its assumed pair form.
func lookupKeys(aggs map[string]domain.PositionAggregate) []string {
	keys := make([]string, 0, len(aggs)*2)
	for sym := range aggs {
		keys = append(keys, sym, sym+"-EUR")
	}
	return keys
}
