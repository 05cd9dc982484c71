package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	AuditReactivateVendor   = "auto_reactivate_vendor"
	AuditUnbanUser          = "auto_unban_user"
	AuditAnnouncementSent   = "announcement_notification_sent"
	AuditAnnouncementFailed = "announcement_notification_failed"

	PerformedBySystem = "system"
)

// InsertAuditLog records a system action
func (r *Repository) InsertAuditLog(ctx context.Context, entry types.AuditLog) error {
	return r.insertAuditLog(ctx, r.db, entry)
}

func (r *Repository) insertAuditLog(ctx context.Context, ex execer, entry types.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.PerformedBy == "" {
		entry.PerformedBy = PerformedBySystem
	}
	metadata, err := encodeJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	_, err = ex.ExecContext(ctx, r.db.Rebind(`INSERT INTO audit_logs
		(id, action, entity_type, entity_id, reason, performed_by, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Reason,
		entry.PerformedBy, metadata, entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the audit trail of one entity, oldest first
func (r *Repository) ListAuditLogs(ctx context.Context, entityType, entityID string) ([]types.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT id, action, entity_type, entity_id, reason,
		performed_by, metadata, created_at FROM audit_logs
		WHERE entity_type = ? AND entity_id = ? ORDER BY created_at, id`), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]types.AuditLog, 0)
	for rows.Next() {
		var (
			entry    types.AuditLog
			metadata string
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Reason,
			&entry.PerformedBy, &metadata, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if err := decodeJSON(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return logs, nil
}
