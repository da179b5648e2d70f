package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/poller"
)

type fakeTradeStore struct {
	inserted []domain.Trade
	nextID   int64
}

func (f *fakeTradeStore) Insert(_ context.Context, t domain.Trade) (int64, error) {
	f.nextID++
	t.ID = f.nextID
	f.inserted = append(f.inserted, t)
	return t.ID, nil
}

func (f *fakeTradeStore) ListOpen(_ context.Context, _ string, _ domain.Mode) ([]domain.Trade, error) {
	return f.inserted, nil
}

func (f *fakeTradeStore) Count(_ context.Context, _ string, _ domain.Mode) (int, error) {
	return len(f.inserted), nil
}

func (f *fakeTradeStore) MarkCorrupted(_ context.Context, _ int64) error { return nil }

func (f *fakeTradeStore) DeleteTestTrades(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeTradeStore) ListBefore(_ context.Context, _ time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakeTradeStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeAccountStore struct {
	created []domain.Account
}

func (f *fakeAccountStore) Get(_ context.Context, accountID string) (domain.Account, error) {
	return domain.Account{ID: accountID}, nil
}

func (f *fakeAccountStore) Create(_ context.Context, a domain.Account) error {
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAccountStore) SetWalletAddress(_ context.Context, _, _ string) error { return nil }
func (f *fakeAccountStore) SetRulesAccepted(_ context.Context, _ string, _ bool) error {
	return nil
}
func (f *fakeAccountStore) SetPanicActive(_ context.Context, _ string, _ bool) error { return nil }
func (f *fakeAccountStore) AdjustCash(_ context.Context, _ string, _ domain.Mode, _ float64) error {
	return nil
}

type fakeAuditStore struct {
	events []string
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return []domain.AuditEntry{{ID: 1, Event: "account.created"}}, nil
}

func newTestAccountService(t *testing.T) (*AccountService, *fakeAccountStore, *fakeTradeStore, *fakeAuditStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := &fakeAccountStore{}
	trades := &fakeTradeStore{}
	audit := &fakeAuditStore{}
	pollers := poller.NewRegistry(context.Background(), logger)
	t.Cleanup(pollers.Close)
	notifier := notify.NewNotifier(nil, nil, logger)
	return NewAccountService(accounts, trades, audit, pollers, notifier, logger), accounts, trades, audit
}

func validTrade() domain.Trade {
	return domain.Trade{
		AccountID:  "acc-1",
		Symbol:     "BTC-EUR",
		Side:       domain.TradeSideBuy,
		Amount:     0.5,
		TotalValue: 1000,
		Fees:       2.5,
		ExecutedAt: time.Now().UTC(),
		IsTestMode: true,
	}
}

func TestRecordTrade_RejectsMalformedBeforeStore(t *testing.T) {
	cases := map[string]func(*domain.Trade){
		"negative amount": func(tr *domain.Trade) { tr.Amount = -5 },
		"zero amount":     func(tr *domain.Trade) { tr.Amount = 0 },
		"nan amount":      func(tr *domain.Trade) { tr.Amount = math.NaN() },
		"inf amount":      func(tr *domain.Trade) { tr.Amount = math.Inf(1) },
		"negative fees":   func(tr *domain.Trade) { tr.Fees = -1 },
		"nan fees":        func(tr *domain.Trade) { tr.Fees = math.NaN() },
		"nan total value": func(tr *domain.Trade) { tr.TotalValue = math.NaN() },
		"empty symbol":    func(tr *domain.Trade) { tr.Symbol = "  " },
		"unknown side":    func(tr *domain.Trade) { tr.Side = "hold" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, trades, _ := newTestAccountService(t)
			tr := validTrade()
			mutate(&tr)

			_, err := svc.RecordTrade(context.Background(), tr)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Empty(t, trades.inserted, "a malformed trade must never reach the ledger")
		})
	}
}

func TestRecordTrade_ValidTradeIsInserted(t *testing.T) {
	svc, _, trades, _ := newTestAccountService(t)

	id, err := svc.RecordTrade(context.Background(), validTrade())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.Len(t, trades.inserted, 1)
	assert.Equal(t, "BTC-EUR", trades.inserted[0].Symbol)
}

func TestCreateAccount(t *testing.T) {
	svc, accounts, _, audit := newTestAccountService(t)

	account, err := svc.Create(context.Background(), 10_000, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, 10_000.0, account.CashTestEur)
	require.Len(t, accounts.created, 1)
	assert.Equal(t, account.ID, accounts.created[0].ID)
	assert.Contains(t, audit.events, "account.created")
}

func TestCreateAccount_RejectsNegativeCash(t *testing.T) {
	svc, accounts, _, _ := newTestAccountService(t)

	_, err := svc.Create(context.Background(), -1, 0)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, accounts.created)
}

func TestAuditLog(t *testing.T) {
	svc, _, _, _ := newTestAccountService(t)

	entries, err := svc.AuditLog(context.Background(), domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "account.created", entries[0].Event)
}
