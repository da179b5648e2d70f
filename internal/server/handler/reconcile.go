package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

// ReconcileHandler serves wallet reconciliation reports.
type ReconcileHandler struct {
	reconciles *service.ReconcileService
	logger     *slog.Logger
}

// NewReconcileHandler creates a ReconcileHandler.
func NewReconcileHandler(reconciles *service.ReconcileService, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciles: reconciles,
		logger:     logHandler(logger, "reconcile"),
	}
}

// GetReconciliation compares the live-mode ledger value against the
// account's on-chain wallet and returns the drift report.
// GET /api/accounts/{id}/reconciliation
func (h *ReconcileHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciles.GetReconciliation(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// History lists an account's stored reconciliation reports, newest first.
// GET /api/accounts/{id}/reconciliation/history?limit=&offset=
func (h *ReconcileHandler) History(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reconciles.History(r.Context(), pathParam(r, "id"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// RefreshWallet forces one immediate wallet balance poll for the account.
// POST /api/accounts/{id}/wallet/refresh
func (h *ReconcileHandler) RefreshWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciles.RefreshWallet(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
