package readiness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// Gate is the single check consulted before any live-trading action. It
// re-derives the state from freshly fetched facts on every call; funding,
// rule acceptance, and panic status can all change between renders, so a
// cached verdict is never trusted.
type Gate struct {
	source domain.PrereqSource
	logger *slog.Logger
}

// NewGate creates a readiness gate over the given fact source.
func NewGate(source domain.PrereqSource, logger *slog.Logger) *Gate {
	return &Gate{source: source, logger: logger.With(slog.String("component", "readiness_gate"))}
}

// Check fetches current facts and derives the state. The error return
// carries the upstream failure for operator diagnosis; the state is already
// ERROR in that case.
func (g *Gate) Check(ctx context.Context, accountID string) (domain.ReadinessState, error) {
	facts, err := g.source.FetchFacts(ctx, accountID)
	state := DeriveFrom(facts, err)
	if err != nil {
		g.logger.Error("readiness facts unavailable, failing closed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return state, fmt.Errorf("readiness: fetch facts: %w", err)
	}
	return state, nil
}

// RequireReady returns nil only when the freshly derived state is READY.
func (g *Gate) RequireReady(ctx context.Context, accountID string) error {
	state, err := g.Check(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrNotReady, err)
	}
	if state != domain.ReadinessReady {
		return fmt.Errorf("%w: state is %s", domain.ErrNotReady, state)
	}
	return nil
}
