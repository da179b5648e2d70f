package reconcile

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(ReconcilerConfig{
		TokenAllowList: []string{"ETH", "WETH", "USDC", "USDT"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func walletSnap(total float64) domain.WalletBalanceSnapshot {
	return domain.WalletBalanceSnapshot{
		Address:       "0xabc",
		TotalValueEur: total,
		FetchedAt:     time.Now().UTC(),
	}
}

func TestReconcile_DriftSignConvention(t *testing.T) {
	r := newTestReconciler()

	report, err := r.Reconcile("acc-1", 1000, walletSnap(1050), []string{"ETH"})
	require.NoError(t, err)
	assert.InDelta(t, 50, report.DriftEur, 1e-9)
	assert.InDelta(t, 5.0, report.DriftPct, 1e-9)
	assert.True(t, report.IsMeaningful)
	assert.Equal(t, domain.CoverageFull, report.Coverage)

	// Ledger overstating reality yields negative drift.
	report, err = r.Reconcile("acc-1", 1050, walletSnap(1000), []string{"ETH"})
	require.NoError(t, err)
	assert.InDelta(t, -50, report.DriftEur, 1e-9)
}

func TestReconcile_MaterialityThreshold(t *testing.T) {
	r := newTestReconciler()

	report, err := r.Reconcile("acc-1", 1000, walletSnap(1000.005), nil)
	require.NoError(t, err)
	assert.False(t, report.IsMeaningful)

	report, err = r.Reconcile("acc-1", 1000, walletSnap(1000.02), nil)
	require.NoError(t, err)
	assert.True(t, report.IsMeaningful)
}

func TestReconcile_ZeroLedgerTotal(t *testing.T) {
	r := newTestReconciler()
	report, err := r.Reconcile("acc-1", 0, walletSnap(25), nil)
	require.NoError(t, err)
	assert.InDelta(t, 25, report.DriftEur, 1e-9)
	assert.Zero(t, report.DriftPct)
}

func TestReconcile_PartialCoverage(t *testing.T) {
	r := newTestReconciler()
	report, err := r.Reconcile("acc-1", 1000, walletSnap(1000), []string{"ETH", "SOL", "BTC"})
	require.NoError(t, err)
	assert.Equal(t, domain.CoveragePartial, report.Coverage)
	assert.Equal(t, []string{"BTC", "SOL"}, report.UncoveredSymbols)
}

func TestReconcile_AllowListIsCaseInsensitive(t *testing.T) {
	r := newTestReconciler()
	report, err := r.Reconcile("acc-1", 1000, walletSnap(1000), []string{"eth", "usdc"})
	require.NoError(t, err)
	assert.Equal(t, domain.CoverageFull, report.Coverage)
}

func TestReconcile_RejectsMalformedInput(t *testing.T) {
	r := newTestReconciler()

	_, err := r.Reconcile("acc-1", math.NaN(), walletSnap(1000), nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = r.Reconcile("acc-1", 1000, walletSnap(math.Inf(1)), nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
