package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

// RefreshHandler serves the combined manual refresh: one forced poll of the
// shared price feed plus the account's wallet balance.
type RefreshHandler struct {
	valuations *service.ValuationService
	reconciles *service.ReconcileService
	logger     *slog.Logger
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(valuations *service.ValuationService, reconciles *service.ReconcileService, logger *slog.Logger) *RefreshHandler {
	return &RefreshHandler{
		valuations: valuations,
		reconciles: reconciles,
		logger:     logHandler(logger, "refresh"),
	}
}

// RefreshAccount forces one poll cycle for everything backing the account's
// views. An account without a registered wallet still refreshes prices.
// POST /api/accounts/{id}/refresh
func (h *RefreshHandler) RefreshAccount(w http.ResponseWriter, r *http.Request) {
	accountID := pathParam(r, "id")

	if err := h.valuations.RefreshPrices(r.Context()); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	walletRefreshed := true
	if err := h.reconciles.RefreshWallet(r.Context(), accountID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			writeDomainError(w, h.logger, r, err)
			return
		}
		walletRefreshed = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "refreshed",
		"wallet_refreshed": walletRefreshed,
	})
}
