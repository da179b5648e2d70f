package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/readiness"
)

// ReadinessService answers GetReadiness requests and guards the live
// trading gate. Every check re-derives the state from freshly fetched
// facts; nothing is cached between checks, because the gate must reflect
// funding, rule acceptance, and panic status as they are right now.
type ReadinessService struct {
	gate     *readiness.Gate
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewReadinessService creates a ReadinessService.
func NewReadinessService(
	gate *readiness.Gate,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ReadinessService {
	return &ReadinessService{
		gate:     gate,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "readiness_service")),
	}
}

// GetReadiness derives the current readiness state for one account. On an
// upstream failure the state is ERROR and the raw validation failure is
// returned alongside for operator diagnosis.
func (s *ReadinessService) GetReadiness(ctx context.Context, accountID string) (domain.ReadinessState, error) {
	state, err := s.gate.Check(ctx, accountID)
	s.publish(ctx, accountID, state)

	if state == domain.ReadinessError {
		if nErr := s.notifier.Notify(ctx, notify.EventReadinessError,
			"Readiness check failed",
			fmt.Sprintf("Account %s: readiness is ERROR: %v", accountID, err),
		); nErr != nil {
			s.logger.WarnContext(ctx, "readiness notify failed", slog.String("error", nErr.Error()))
		}
	}
	return state, err
}

// AuthorizeLiveTrading is the gate consulted immediately before any
// live-trading action. It returns nil only when the freshly derived state
// is READY; any other state, or any fetch failure, blocks the action.
func (s *ReadinessService) AuthorizeLiveTrading(ctx context.Context, accountID string) error {
	return s.gate.RequireReady(ctx, accountID)
}

func (s *ReadinessService) publish(ctx context.Context, accountID string, state domain.ReadinessState) {
	evt, _ := json.Marshal(map[string]any{
		"event":      "readiness_checked",
		"account_id": accountID,
		"state":      string(state),
	})
	if err := s.bus.Publish(ctx, "readiness", evt); err != nil {
		s.logger.WarnContext(ctx, "publish readiness event failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
}
