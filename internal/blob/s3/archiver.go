package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query and prune methods it actually calls,
// not the full domain store interfaces. The Postgres stores satisfy these
// implicitly.
// ---------------------------------------------------------------------------

// TradeArchiveStore provides the ledger access needed for archival.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReportArchiveStore provides the reconciliation history access needed for
// archival.
type ReportArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ReconciliationReport, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver: it queries the stores for old
// rows, serializes them to JSONL, uploads the file to S3, verifies the
// upload exists, and only then prunes the archived rows from the primary
// store. A failed verification leaves the database untouched.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	trades  TradeArchiveStore
	reports ReportArchiveStore
	audit   domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	reports ReportArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		reader:  reader,
		trades:  trades,
		reports: reports,
		audit:   audit,
	}
}

// ArchiveTrades moves the ledger rows closed before the cutoff to S3 at
// archive/trades/YYYY-MM.jsonl and prunes them after verification. Open
// rows stay in the primary store regardless of age; the ledger is the
// source of truth for current exposure. The archival event is recorded in
// the audit log and the count of archived rows is returned.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}
	path := archivePath("trades", before)
	if err := a.uploadAndVerify(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: %w", err)
	}

	pruned, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades prune: %w", err)
	}

	count := int64(len(trades))
	if err := a.audit.Log(ctx, "archive.trades", map[string]any{
		"path":   path,
		"count":  count,
		"pruned": pruned,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}
	return count, nil
}

// ArchiveReports moves all reconciliation reports computed before the
// cutoff to S3 at archive/reconciliation_reports/YYYY-MM.jsonl and prunes
// them after verification.
func (a *ArchiveImpl) ArchiveReports(ctx context.Context, before time.Time) (int64, error) {
	reports, err := a.reports.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reports query: %w", err)
	}
	if len(reports) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(reports)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reports marshal: %w", err)
	}
	path := archivePath("reconciliation_reports", before)
	if err := a.uploadAndVerify(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive reports: %w", err)
	}

	pruned, err := a.reports.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reports prune: %w", err)
	}

	count := int64(len(reports))
	if err := a.audit.Log(ctx, "archive.reconciliation_reports", map[string]any{
		"path":   path,
		"count":  count,
		"pruned": pruned,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive reports audit log: %w", err)
	}
	return count, nil
}

// uploadAndVerify uploads one JSONL file and confirms the object exists
// before the caller is allowed to prune.
func (a *ArchiveImpl) uploadAndVerify(ctx context.Context, path string, buf []byte) error {
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !exists {
		return fmt.Errorf("verify: uploaded object %s not found", path)
	}
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
