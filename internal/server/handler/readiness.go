package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

// ReadinessHandler serves the funding-readiness state and the live-trading
// authorization gate.
type ReadinessHandler struct {
	readiness *service.ReadinessService
	logger    *slog.Logger
}

// NewReadinessHandler creates a ReadinessHandler.
func NewReadinessHandler(readiness *service.ReadinessService, logger *slog.Logger) *ReadinessHandler {
	return &ReadinessHandler{
		readiness: readiness,
		logger:    logHandler(logger, "readiness"),
	}
}

// GetReadiness derives and returns the current readiness state for one
// account. An upstream failure still answers 200 with state ERROR; the gate
// is closed either way, and the detail helps the operator diagnose.
// GET /api/accounts/{id}/readiness
func (h *ReadinessHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	state, err := h.readiness.GetReadiness(r.Context(), pathParam(r, "id"))

	resp := map[string]any{"state": string(state)}
	if state == domain.ReadinessError && err != nil {
		resp["detail"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuthorizeGate answers whether live trading is authorized right now. Only a
// freshly derived READY passes; everything else is a 403.
// POST /api/accounts/{id}/gate
func (h *ReadinessHandler) AuthorizeGate(w http.ResponseWriter, r *http.Request) {
	if err := h.readiness.AuthorizeLiveTrading(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authorized": true})
}
