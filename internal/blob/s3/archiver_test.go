package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

type fakeBlobStore struct {
	objects map[string][]byte
	exists  bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte), exists: true}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = buf
	return nil
}

func (f *fakeBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func (f *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.objects[path])), nil
}

func (f *fakeBlobStore) List(_ context.Context, _ string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	if !f.exists {
		return false, nil
	}
	_, ok := f.objects[path]
	return ok, nil
}

// fakeTradeArchive implements the closed-rows-only archival contract of
// domain.TradeStore over an in-memory slice.
type fakeTradeArchive struct {
	trades []domain.Trade
}

func (f *fakeTradeArchive) eligible(t domain.Trade, before time.Time) bool {
	return t.ClosedAt != nil && t.ClosedAt.Before(before)
}

func (f *fakeTradeArchive) ListBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	var out []domain.Trade
	for _, t := range f.trades {
		if f.eligible(t, before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeArchive) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.Trade
	var pruned int64
	for _, t := range f.trades {
		if f.eligible(t, before) {
			pruned++
			continue
		}
		kept = append(kept, t)
	}
	f.trades = kept
	return pruned, nil
}

type fakeReportArchive struct {
	reports []domain.ReconciliationReport
}

func (f *fakeReportArchive) ListBefore(_ context.Context, before time.Time) ([]domain.ReconciliationReport, error) {
	var out []domain.ReconciliationReport
	for _, r := range f.reports {
		if r.ComputedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportArchive) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.ReconciliationReport
	var pruned int64
	for _, r := range f.reports {
		if r.ComputedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	f.reports = kept
	return pruned, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func tradeAt(id int64, executed time.Time, closed *time.Time) domain.Trade {
	return domain.Trade{
		ID:         id,
		AccountID:  "acc-1",
		Symbol:     "BTC-EUR",
		Side:       domain.TradeSideBuy,
		Amount:     1,
		TotalValue: 100,
		ExecutedAt: executed,
		ClosedAt:   closed,
	}
}

func TestArchiveTrades_OpenTradesSurvive(t *testing.T) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -90)
	oldClose := now.AddDate(0, 0, -120)

	trades := &fakeTradeArchive{trades: []domain.Trade{
		// Closed well before the cutoff: archivable.
		tradeAt(1, now.AddDate(0, 0, -130), &oldClose),
		// Executed long ago but still open: must never be pruned.
		tradeAt(2, now.AddDate(0, 0, -130), nil),
		// Closed after the cutoff: stays.
		tradeAt(3, now.AddDate(0, 0, -10), &now),
	}}
	blob := newFakeBlobStore()
	audit := &fakeAudit{}
	arch := NewArchiver(blob, blob, trades, &fakeReportArchive{}, audit)

	count, err := arch.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := trades.ListBefore(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "only the recently closed trade should still be archivable later")

	var ids []int64
	for _, tr := range trades.trades {
		ids = append(ids, tr.ID)
	}
	assert.ElementsMatch(t, []int64{2, 3}, ids, "the open trade must survive archival")

	path := archivePath("trades", cutoff)
	require.Contains(t, blob.objects, path)
	lines := strings.Split(strings.TrimSpace(string(blob.objects[path])), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"ID":1`)
	assert.Equal(t, []string{"archive.trades"}, audit.events)
}

func TestArchiveTrades_NothingEligible(t *testing.T) {
	now := time.Now().UTC()
	trades := &fakeTradeArchive{trades: []domain.Trade{
		tradeAt(1, now.AddDate(0, 0, -200), nil),
	}}
	blob := newFakeBlobStore()
	arch := NewArchiver(blob, blob, trades, &fakeReportArchive{}, &fakeAudit{})

	count, err := arch.ArchiveTrades(context.Background(), now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, blob.objects)
	assert.Len(t, trades.trades, 1)
}

func TestArchiveTrades_FailedVerificationLeavesStoreUntouched(t *testing.T) {
	now := time.Now().UTC()
	closed := now.AddDate(0, 0, -120)
	trades := &fakeTradeArchive{trades: []domain.Trade{
		tradeAt(1, closed, &closed),
	}}
	blob := newFakeBlobStore()
	blob.exists = false
	arch := NewArchiver(blob, blob, trades, &fakeReportArchive{}, &fakeAudit{})

	_, err := arch.ArchiveTrades(context.Background(), now.AddDate(0, 0, -90))
	require.Error(t, err)
	assert.Len(t, trades.trades, 1, "prune must not run when verification fails")
}

func TestArchiveReports(t *testing.T) {
	now := time.Now().UTC()
	reports := &fakeReportArchive{reports: []domain.ReconciliationReport{
		{ID: "r-old", AccountID: "acc-1", ComputedAt: now.AddDate(0, 0, -120)},
		{ID: "r-new", AccountID: "acc-1", ComputedAt: now},
	}}
	blob := newFakeBlobStore()
	audit := &fakeAudit{}
	arch := NewArchiver(blob, blob, &fakeTradeArchive{}, reports, audit)

	count, err := arch.ArchiveReports(context.Background(), now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, reports.reports, 1)
	assert.Equal(t, "r-new", reports.reports[0].ID)
	assert.Equal(t, []string{"archive.reconciliation_reports"}, audit.events)
}
