package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/server/handler"
	"github.com/alanyoungcy/portfolio-engine/internal/server/middleware"
	"github.com/alanyoungcy/portfolio-engine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Valuation *handler.ValuationHandler
	Reconcile *handler.ReconcileHandler
	Refresh   *handler.RefreshHandler
	Readiness *handler.ReadinessHandler
	Account   *handler.AccountHandler
}

// Server is the headless HTTP + WebSocket API for the portfolio engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Valuation endpoints.
	mux.HandleFunc("GET /api/accounts/{id}/valuation", handlers.Valuation.GetValuation)
	mux.HandleFunc("POST /api/refresh/prices", handlers.Valuation.RefreshPrices)

	// Reconciliation endpoints.
	mux.HandleFunc("GET /api/accounts/{id}/reconciliation", handlers.Reconcile.GetReconciliation)
	mux.HandleFunc("GET /api/accounts/{id}/reconciliation/history", handlers.Reconcile.History)
	mux.HandleFunc("POST /api/accounts/{id}/wallet/refresh", handlers.Reconcile.RefreshWallet)
	mux.HandleFunc("POST /api/accounts/{id}/refresh", handlers.Refresh.RefreshAccount)

	// Readiness endpoints.
	mux.HandleFunc("GET /api/accounts/{id}/readiness", handlers.Readiness.GetReadiness)
	mux.HandleFunc("POST /api/accounts/{id}/gate", handlers.Readiness.AuthorizeGate)

	// Account endpoints.
	mux.HandleFunc("POST /api/accounts", handlers.Account.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", handlers.Account.GetAccount)
	mux.HandleFunc("POST /api/accounts/{id}/wallet", handlers.Account.RegisterWallet)
	mux.HandleFunc("POST /api/accounts/{id}/rules/accept", handlers.Account.AcceptRules)
	mux.HandleFunc("POST /api/accounts/{id}/panic", handlers.Account.ActivatePanic)
	mux.HandleFunc("POST /api/accounts/{id}/panic/clear", handlers.Account.ClearPanic)
	mux.HandleFunc("POST /api/accounts/{id}/reset-test", handlers.Account.ResetTestData)
	mux.HandleFunc("POST /api/accounts/{id}/logout", handlers.Account.Logout)
	mux.HandleFunc("POST /api/accounts/{id}/trades", handlers.Account.RecordTrade)
	mux.HandleFunc("POST /api/trades/{id}/corrupt", handlers.Account.MarkTradeCorrupted)
	mux.HandleFunc("GET /api/audit", handlers.Account.AuditLog)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
