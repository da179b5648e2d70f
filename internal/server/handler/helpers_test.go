package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteDomainError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("amount", "must be > 0"), http.StatusBadRequest},
		{"mixed modes", domain.ErrMixedModes, http.StatusUnprocessableEntity},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"no snapshot", domain.ErrNoSnapshot, http.StatusNotFound},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict},
		{"not ready", domain.ErrNotReady, http.StatusForbidden},
		{"panic active", domain.ErrPanicActive, http.StatusForbidden},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			writeDomainError(rec, discardLogger(), req, tc.err)

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestWriteDomainError_WrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	err := errors.Join(errors.New("load account"), domain.ErrNotFound)
	writeDomainError(rec, discardLogger(), req, err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteDomainError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	writeDomainError(rec, discardLogger(), req, errors.New("pgx: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pgx")
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/test?limit=10&offset=5", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)

	// Defaults and clamping.
	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/test?limit=9999&offset=-3", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}

func TestParseMode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/test?mode=live", nil)
	mode, err := parseMode(req)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeLive, mode)

	req = httptest.NewRequest(http.MethodGet, "/api/test?mode=TEST", nil)
	mode, err = parseMode(req)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeTest, mode)

	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	_, err = parseMode(req)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
