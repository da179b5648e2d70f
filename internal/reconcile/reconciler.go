package reconcile

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// ReconcilerConfig configures the wallet reality reconciler.
type ReconcilerConfig struct {
	// TokenAllowList is the fixed token set the wallet balance source can
	// observe (e.g. ETH/WETH/USDC/USDT). Ledger positions outside it make
	// the comparison partial.
	TokenAllowList []string
	// MaterialityEur is the drift threshold below which the difference is
	// floating-point noise. Zero means domain.DriftMaterialityEur.
	MaterialityEur float64
}

// Reconciler compares the ledger-derived valuation against the
// independently observed on-chain wallet balance. It is read-only and
// diagnostic: it never mutates the ledger and never triggers correction.
// Trading decisions use the ledger value, never the wallet snapshot.
type Reconciler struct {
	allowList   map[string]struct{}
	materiality float64
	logger      *slog.Logger
}

// NewReconciler creates a reconciler for the given token allow-list.
func NewReconciler(cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	allow := make(map[string]struct{}, len(cfg.TokenAllowList))
	for _, sym := range cfg.TokenAllowList {
		allow[strings.ToUpper(strings.TrimSpace(sym))] = struct{}{}
	}
	materiality := cfg.MaterialityEur
	if materiality <= 0 {
		materiality = domain.DriftMaterialityEur
	}
	return &Reconciler{
		allowList:   allow,
		materiality: materiality,
		logger:      logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile computes the drift report between the ledger total and the
// wallet snapshot. ledgerSymbols is the set of base symbols with open
// exposure; any of them outside the wallet's token allow-list marks the
// comparison partial, because drift against an incomplete wallet view must
// never be presented as exact.
func (r *Reconciler) Reconcile(accountID string, ledgerTotalEur float64, wallet domain.WalletBalanceSnapshot, ledgerSymbols []string) (domain.ReconciliationReport, error) {
	if math.IsNaN(ledgerTotalEur) || math.IsInf(ledgerTotalEur, 0) {
		return domain.ReconciliationReport{}, domain.NewValidationError("ledger_total_eur", "must be finite, got %v", ledgerTotalEur)
	}
	if math.IsNaN(wallet.TotalValueEur) || math.IsInf(wallet.TotalValueEur, 0) {
		return domain.ReconciliationReport{}, domain.NewValidationError("wallet_total_eur", "must be finite, got %v", wallet.TotalValueEur)
	}

	drift := wallet.TotalValueEur - ledgerTotalEur
	var driftPct float64
	if ledgerTotalEur != 0 {
		driftPct = drift / math.Abs(ledgerTotalEur) * 100
	}

	coverage := domain.CoverageFull
	var uncovered []string
	for _, sym := range ledgerSymbols {
		if _, ok := r.allowList[strings.ToUpper(strings.TrimSpace(sym))]; !ok {
			uncovered = append(uncovered, sym)
		}
	}
	if len(uncovered) > 0 {
		coverage = domain.CoveragePartial
		sort.Strings(uncovered)
	}

	report := domain.ReconciliationReport{
		ID:               uuid.Must(uuid.NewRandom()).String(),
		AccountID:        accountID,
		LedgerTotalEur:   ledgerTotalEur,
		WalletTotalEur:   wallet.TotalValueEur,
		DriftEur:         drift,
		DriftPct:         driftPct,
		IsMeaningful:     math.Abs(drift) >= r.materiality,
		Coverage:         coverage,
		UncoveredSymbols: uncovered,
		WalletFetchedAt:  wallet.FetchedAt,
		ComputedAt:       time.Now().UTC(),
	}

	if report.IsMeaningful {
		r.logger.Warn("ledger/wallet drift detected",
			slog.String("account_id", accountID),
			slog.Float64("drift_eur", drift),
			slog.Float64("drift_pct", driftPct),
			slog.String("coverage", string(coverage)),
		)
	}
	return report, nil
}
