package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves build and uptime metadata for the dashboard.
type StatusHandler struct {
	Version   string
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(version string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Version: version, StartedAt: startedAt}
}

// GetStatus responds with the engine version and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        h.Version,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
