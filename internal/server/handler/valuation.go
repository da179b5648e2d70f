package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

// ValuationHandler serves portfolio valuation snapshots.
type ValuationHandler struct {
	valuations *service.ValuationService
	logger     *slog.Logger
}

// NewValuationHandler creates a ValuationHandler.
func NewValuationHandler(valuations *service.ValuationService, logger *slog.Logger) *ValuationHandler {
	return &ValuationHandler{
		valuations: valuations,
		logger:     logHandler(logger, "valuation"),
	}
}

// GetValuation recomputes and returns the valuation snapshot for one account
// and mode.
// GET /api/accounts/{id}/valuation?mode=test|live
func (h *ValuationHandler) GetValuation(w http.ResponseWriter, r *http.Request) {
	accountID := pathParam(r, "id")
	mode, err := parseMode(r)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	snap, err := h.valuations.GetValuation(r.Context(), accountID, mode)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RefreshPrices forces one immediate price poll, bypassing the minimum
// interval. The valuation endpoint picks the fresh quotes up on its next
// call.
// POST /api/refresh/prices
func (h *ValuationHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	if err := h.valuations.RefreshPrices(r.Context()); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
