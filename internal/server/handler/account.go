package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

// AccountHandler serves account state and the operator-visible account
// actions: wallet registration, rule acceptance, panic control, and
// test-mode resets.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logHandler(logger, "account"),
	}
}

// CreateAccount registers a new account with the given starting balances.
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartingCashTestEur float64 `json:"starting_cash_test_eur"`
		StartingCashLiveEur float64 `json:"starting_cash_live_eur"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	account, err := h.accounts.Create(r.Context(), req.StartingCashTestEur, req.StartingCashLiveEur)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccount returns one account.
// GET /api/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// RegisterWallet records the account's externally-custodied wallet address.
// POST /api/accounts/{id}/wallet
func (h *AccountHandler) RegisterWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if err := h.accounts.RegisterWallet(r.Context(), pathParam(r, "id"), req.Address); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// AcceptRules records the account's trading-rules acceptance.
// POST /api/accounts/{id}/rules/accept
func (h *AccountHandler) AcceptRules(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.AcceptRules(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ActivatePanic raises the panic halt for the account.
// POST /api/accounts/{id}/panic
func (h *AccountHandler) ActivatePanic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if err := h.accounts.ActivatePanic(r.Context(), pathParam(r, "id"), req.Reason); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "panic_active"})
}

// ClearPanic lifts the panic halt. The body must carry explicit
// confirmation; nothing clears a panic as a side effect.
// POST /api/accounts/{id}/panic/clear
func (h *AccountHandler) ClearPanic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if err := h.accounts.ClearPanic(r.Context(), pathParam(r, "id"), req.Confirm); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "panic_cleared"})
}

// ResetTestData wipes the account's test-mode ledger and restores the test
// cash balance.
// POST /api/accounts/{id}/reset-test
func (h *AccountHandler) ResetTestData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartingCashEur float64 `json:"starting_cash_eur"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if req.StartingCashEur < 0 {
		writeDomainError(w, h.logger, r,
			domain.NewValidationError("starting_cash_eur", "must not be negative"))
		return
	}
	if err := h.accounts.ResetTestData(r.Context(), pathParam(r, "id"), req.StartingCashEur); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Logout cancels every scheduled poll for the account.
// POST /api/accounts/{id}/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context(), pathParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// RecordTrade appends one executed trade to the account's ledger.
// POST /api/accounts/{id}/trades
func (h *AccountHandler) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol     string    `json:"symbol"`
		Side       string    `json:"side"`
		Amount     float64   `json:"amount"`
		TotalValue float64   `json:"total_value"`
		Fees       float64   `json:"fees"`
		ExecutedAt time.Time `json:"executed_at"`
		IsTestMode bool      `json:"is_test_mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	trade := domain.Trade{
		AccountID:  pathParam(r, "id"),
		Symbol:     req.Symbol,
		Side:       domain.TradeSide(req.Side),
		Amount:     req.Amount,
		TotalValue: req.TotalValue,
		Fees:       req.Fees,
		ExecutedAt: req.ExecutedAt,
		IsTestMode: req.IsTestMode,
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now().UTC()
	}

	id, err := h.accounts.RecordTrade(r.Context(), trade)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// MarkTradeCorrupted annotates one trade as failing the external integrity
// check.
// POST /api/trades/{id}/corrupt
func (h *AccountHandler) MarkTradeCorrupted(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeDomainError(w, h.logger, r,
			domain.NewValidationError("id", "must be a numeric trade id"))
		return
	}
	if err := h.accounts.MarkTradeCorrupted(r.Context(), tradeID); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "marked"})
}

// AuditLog returns the operator audit trail, newest first.
// GET /api/audit
func (h *AccountHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.accounts.AuditLog(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
