package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// PendingAnnouncements returns announcements that have not been pushed yet, oldest first
func (r *Repository) PendingAnnouncements(ctx context.Context, limit int) ([]types.Announcement, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT id, title, message, priority, target_audience,
		is_active, expires_at, created_at FROM announcements
		WHERE notified_at IS NULL ORDER BY created_at, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	pending := make([]types.Announcement, 0)
	for rows.Next() {
		var (
			a       types.Announcement
			expires sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.Priority, &a.TargetAudience,
			&a.IsActive, &expires, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		a.ExpiresAt = timePtr(expires)
		pending = append(pending, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate announcements: %w", err)
	}
	return pending, nil
}

// MarkAnnouncementNotified stamps an announcement so later sweeps skip it
func (r *Repository) MarkAnnouncementNotified(ctx context.Context, id, outcome string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE announcements SET notified_at = ?, notification_outcome = ?
		WHERE id = ?`), now.UTC(), outcome, id)
	if err != nil {
		return fmt.Errorf("failed to mark announcement %s: %w", id, err)
	}
	return nil
}
