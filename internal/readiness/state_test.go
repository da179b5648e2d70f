package readiness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func allGood() domain.ReadinessFacts {
	return domain.ReadinessFacts{
		WalletExists:        true,
		HasPortfolioCapital: true,
		RulesAccepted:       true,
		PanicActive:         false,
	}
}

func TestDerive_Ready(t *testing.T) {
	assert.Equal(t, domain.ReadinessReady, Derive(allGood()))
}

func TestDerive_MonotonicGate(t *testing.T) {
	// Flipping any single fact must independently force a non-READY state.
	noWallet := allGood()
	noWallet.WalletExists = false
	assert.Equal(t, domain.ReadinessNoWallet, Derive(noWallet))

	noCapital := allGood()
	noCapital.HasPortfolioCapital = false
	assert.Equal(t, domain.ReadinessNoCapital, Derive(noCapital))

	noRules := allGood()
	noRules.RulesAccepted = false
	assert.Equal(t, domain.ReadinessNoCapital, Derive(noRules))

	panicking := allGood()
	panicking.PanicActive = true
	assert.Equal(t, domain.ReadinessNoCapital, Derive(panicking))
}

func TestDerive_WalletCheckedFirst(t *testing.T) {
	// An account with nothing at all is NO_WALLET, not NO_CAPITAL.
	assert.Equal(t, domain.ReadinessNoWallet, Derive(domain.ReadinessFacts{}))
}

func TestDeriveFrom_FailsClosed(t *testing.T) {
	state := DeriveFrom(allGood(), errors.New("upstream down"))
	assert.Equal(t, domain.ReadinessError, state)
}

type stubPrereqSource struct {
	facts domain.ReadinessFacts
	err   error
}

func (s stubPrereqSource) FetchFacts(_ context.Context, _ string) (domain.ReadinessFacts, error) {
	return s.facts, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGate_Check(t *testing.T) {
	g := NewGate(stubPrereqSource{facts: allGood()}, testLogger())
	state, err := g.Check(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReadinessReady, state)
}

func TestGate_CheckFailsClosedOnFetchError(t *testing.T) {
	g := NewGate(stubPrereqSource{err: errors.New("timeout")}, testLogger())
	state, err := g.Check(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Equal(t, domain.ReadinessError, state)
}

func TestGate_CheckFailsClosedOnMalformedFacts(t *testing.T) {
	g := NewGate(stubPrereqSource{
		err: domain.NewValidationError("panic_active", "missing required field"),
	}, testLogger())
	state, err := g.Check(context.Background(), "acc-1")
	require.Error(t, err)
	assert.Equal(t, domain.ReadinessError, state)
	assert.True(t, domain.IsValidation(err))
}

func TestGate_RequireReady(t *testing.T) {
	g := NewGate(stubPrereqSource{facts: allGood()}, testLogger())
	assert.NoError(t, g.RequireReady(context.Background(), "acc-1"))

	notFunded := allGood()
	notFunded.HasPortfolioCapital = false
	g = NewGate(stubPrereqSource{facts: notFunded}, testLogger())
	err := g.RequireReady(context.Background(), "acc-1")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	g = NewGate(stubPrereqSource{err: errors.New("down")}, testLogger())
	assert.ErrorIs(t, g.RequireReady(context.Background(), "acc-1"), domain.ErrNotReady)
}
