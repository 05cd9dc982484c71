package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// LatestDocID is the document that always holds the most recent report of a collection
const LatestDocID = "latest"

// SaveReport writes payload as both the latest document and the history document
// in one transaction
func (r *Repository) SaveReport(ctx context.Context, collection, historyID string, calculatedAt time.Time, payload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewPersistenceError(collection, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	query := r.db.Rebind(`INSERT INTO reports (collection, doc_id, payload, calculated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, doc_id) DO UPDATE SET payload = excluded.payload, calculated_at = excluded.calculated_at`)
	for _, docID := range []string{LatestDocID, historyID} {
		if _, err := tx.ExecContext(ctx, query, collection, docID, string(payload), calculatedAt.UTC()); err != nil {
			return apperrors.NewPersistenceError(collection+"/"+docID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewPersistenceError(collection, fmt.Errorf("failed to commit report: %w", err))
	}
	return nil
}

// GetReport returns one stored document
func (r *Repository) GetReport(ctx context.Context, collection, docID string) (*types.StoredReport, error) {
	var (
		payload string
		doc     = types.StoredReport{Collection: collection, DocID: docID}
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT payload, calculated_at FROM reports
		WHERE collection = ? AND doc_id = ?`), collection, docID).Scan(&payload, &doc.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("report", collection+"/"+docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s/%s: %w", collection, docID, err)
	}
	doc.CalculatedAt = doc.CalculatedAt.UTC()
	doc.Payload = []byte(payload)
	return &doc, nil
}

// ListReports returns history documents newest first, excluding latest
func (r *Repository) ListReports(ctx context.Context, collection string, limit int) ([]types.ReportRef, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT doc_id, calculated_at FROM reports
		WHERE collection = ? AND doc_id <> ? ORDER BY calculated_at DESC, doc_id DESC LIMIT ?`),
		collection, LatestDocID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	refs := make([]types.ReportRef, 0)
	for rows.Next() {
		var ref types.ReportRef
		if err := rows.Scan(&ref.DocID, &ref.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report ref: %w", err)
		}
		ref.CalculatedAt = ref.CalculatedAt.UTC()
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return refs, nil
}

// PruneReports deletes history documents calculated before olderThan.
// The latest document is never removed.
func (r *Repository) PruneReports(ctx context.Context, collection string, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM reports
		WHERE collection = ? AND doc_id <> ? AND calculated_at < ?`), collection, LatestDocID, olderThan.UTC())
	if err != nil {
		return 0, apperrors.NewPersistenceError(collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned reports: %w", err)
	}
	return int(n), nil
}
