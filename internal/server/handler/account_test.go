package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/poller"
	"github.com/alanyoungcy/portfolio-engine/internal/service"
)

type stubTradeStore struct {
	inserted []domain.Trade
}

func (s *stubTradeStore) Insert(_ context.Context, t domain.Trade) (int64, error) {
	s.inserted = append(s.inserted, t)
	return int64(len(s.inserted)), nil
}

func (s *stubTradeStore) ListOpen(_ context.Context, _ string, _ domain.Mode) ([]domain.Trade, error) {
	return nil, nil
}

func (s *stubTradeStore) Count(_ context.Context, _ string, _ domain.Mode) (int, error) {
	return 0, nil
}

func (s *stubTradeStore) MarkCorrupted(_ context.Context, _ int64) error { return nil }

func (s *stubTradeStore) DeleteTestTrades(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (s *stubTradeStore) ListBefore(_ context.Context, _ time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (s *stubTradeStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type stubAuditStore struct{}

func (stubAuditStore) Log(_ context.Context, _ string, _ map[string]any) error { return nil }
func (stubAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newTradeHandler(t *testing.T) (*AccountHandler, *stubTradeStore) {
	t.Helper()
	logger := discardLogger()
	trades := &stubTradeStore{}
	pollers := poller.NewRegistry(context.Background(), logger)
	t.Cleanup(pollers.Close)
	svc := service.NewAccountService(nil, trades, stubAuditStore{}, pollers,
		notify.NewNotifier(nil, nil, logger), logger)
	return NewAccountHandler(svc, logger), trades
}

func postTrade(t *testing.T, h *AccountHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/acc-1/trades", strings.NewReader(body))
	req.SetPathValue("id", "acc-1")
	h.RecordTrade(rec, req)
	return rec
}

func TestRecordTrade_MalformedBodyIs400(t *testing.T) {
	cases := map[string]string{
		"negative amount": `{"symbol":"BTC-EUR","side":"buy","amount":-5,"total_value":100}`,
		"zero amount":     `{"symbol":"BTC-EUR","side":"buy","amount":0,"total_value":100}`,
		"negative fees":   `{"symbol":"BTC-EUR","side":"buy","amount":1,"total_value":100,"fees":-1}`,
		"unknown side":    `{"symbol":"BTC-EUR","side":"hold","amount":1,"total_value":100}`,
		"missing symbol":  `{"side":"buy","amount":1,"total_value":100}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h, trades := newTradeHandler(t)
			rec := postTrade(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, trades.inserted)
		})
	}
}

func TestRecordTrade_ValidBodyIs201(t *testing.T) {
	h, trades := newTradeHandler(t)
	rec := postTrade(t, h,
		`{"symbol":"BTC-EUR","side":"buy","amount":0.5,"total_value":1000,"fees":2.5,"is_test_mode":true}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, trades.inserted, 1)
	assert.Equal(t, "acc-1", trades.inserted[0].AccountID)
	assert.False(t, trades.inserted[0].ExecutedAt.IsZero(), "executed_at defaults to now")
}
