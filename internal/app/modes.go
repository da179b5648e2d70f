package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/portfolio-engine/internal/poller"
	"github.com/alanyoungcy/portfolio-engine/internal/readiness"
	"github.com/alanyoungcy/portfolio-engine/internal/reconcile"
	"github.com/alanyoungcy/portfolio-engine/internal/server"
	"github.com/alanyoungcy/portfolio-engine/internal/server/handler"
	"github.com/alanyoungcy/portfolio-engine/internal/server/ws"
	"github.com/alanyoungcy/portfolio-engine/internal/service"
	"github.com/alanyoungcy/portfolio-engine/internal/valuation"
)

// version is stamped via -ldflags at build time.
var version = "dev"

// services bundles the engine services built on top of Dependencies.
type services struct {
	valuations *service.ValuationService
	reconciles *service.ReconcileService
	readiness  *service.ReadinessService
	accounts   *service.AccountService
	pollers    *poller.Registry
}

// buildServices constructs the engine services. The poller registry descends
// from ctx, so cancelling it stops every background poll loop.
func (a *App) buildServices(ctx context.Context, deps *Dependencies) *services {
	pollers := poller.NewRegistry(ctx, a.logger)

	calc := valuation.NewCalculator(valuation.CalculatorConfig{
		GasPerTxEur: a.cfg.Engine.GasPerTxEur,
	}, a.logger)

	reconciler := reconcile.NewReconciler(reconcile.ReconcilerConfig{
		TokenAllowList: a.cfg.Engine.TokenAllowList,
		MaterialityEur: a.cfg.Engine.DriftMaterialityEur,
	}, a.logger)

	gate := readiness.NewGate(deps.PrereqSource, a.logger)

	pricePollCfg := poller.Config{
		MinInterval: a.cfg.Poll.PriceInterval.Duration,
		MaxBackoff:  a.cfg.Poll.MaxBackoff.Duration,
	}
	walletPollCfg := poller.Config{
		MinInterval: a.cfg.Poll.WalletInterval.Duration,
		MaxBackoff:  a.cfg.Poll.MaxBackoff.Duration,
	}

	valuations := service.NewValuationService(
		deps.TradeStore, deps.AccountStore, deps.PriceCache, deps.SnapshotCache,
		deps.PriceSource, calc, pollers, pricePollCfg,
		deps.LockManager, deps.SignalBus, deps.Notifier, a.logger,
	)
	reconciles := service.NewReconcileService(
		deps.AccountStore, deps.ReportStore, deps.SnapshotCache, deps.WalletSource,
		reconciler, valuations, pollers, walletPollCfg,
		deps.SignalBus, deps.Notifier, a.logger,
	)
	readinessSvc := service.NewReadinessService(gate, deps.SignalBus, deps.Notifier, a.logger)
	accounts := service.NewAccountService(
		deps.AccountStore, deps.TradeStore, deps.AuditStore,
		pollers, deps.Notifier, a.logger,
	)

	return &services{
		valuations: valuations,
		reconciles: reconciles,
		readiness:  readinessSvc,
		accounts:   accounts,
		pollers:    pollers,
	}
}

// ServerMode runs the HTTP + WebSocket API. Polling happens opportunistically
// on request, plus the background loops the registry starts per poller.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(ctx, deps)
	defer svcs.pollers.Close()

	a.startHTTPServer(ctx, g, deps, svcs)
	return g.Wait()
}

// MonitorMode keeps the price cache warm without exposing the API: it kicks
// the shared price poller and lets its background loop run. Useful as a
// sidecar replica that holds the poll lock while another replica serves.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(ctx, deps)
	defer svcs.pollers.Close()

	g.Go(func() error {
		if err := svcs.valuations.RefreshPrices(ctx); err != nil {
			a.logger.WarnContext(ctx, "monitor mode: initial price poll failed",
				slog.String("error", err.Error()),
			)
		}
		<-ctx.Done()
		return ctx.Err()
	})

	return g.Wait()
}

// ArchiveMode runs one archival cycle and exits: ledger rows and
// reconciliation reports older than the retention window move to S3.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	return a.runArchive(ctx, deps)
}

// FullMode runs everything: the API server, the warm-cache poll loops, and a
// daily archival pass.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(ctx, deps)
	defer svcs.pollers.Close()

	g.Go(func() error {
		if err := svcs.valuations.RefreshPrices(ctx); err != nil {
			a.logger.WarnContext(ctx, "full mode: initial price poll failed",
				slog.String("error", err.Error()),
			)
		}
		return nil
	})

	// Daily archival pass.
	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := a.runArchive(ctx, deps); err != nil {
					a.logger.ErrorContext(ctx, "scheduled archive failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// runArchive moves rows older than the retention window to cold storage.
func (a *App) runArchive(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive: S3 storage is not wired for mode %q", a.cfg.Mode)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Engine.ArchiveRetentionDays)

	trades, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive trades: %w", err)
	}
	reports, err := deps.Archiver.ArchiveReports(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive reports: %w", err)
	}

	a.logger.InfoContext(ctx, "archive cycle complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("trades_archived", trades),
		slog.Int64("reports_archived", reports),
	)
	return nil
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Status:    handler.NewStatusHandler(version, time.Now().UTC()),
		Valuation: handler.NewValuationHandler(svcs.valuations, a.logger),
		Reconcile: handler.NewReconcileHandler(svcs.reconciles, a.logger),
		Refresh:   handler.NewRefreshHandler(svcs.valuations, svcs.reconciles, a.logger),
		Readiness: handler.NewReadinessHandler(svcs.readiness, a.logger),
		Account:   handler.NewAccountHandler(svcs.accounts, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
