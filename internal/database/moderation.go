package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// DueSuspensions returns suspended vendors whose suspension has ended
func (r *Repository) DueSuspensions(ctx context.Context, now time.Time) ([]types.SuspendedVendor, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT id, name, suspended_until FROM vendors
		WHERE approval_status = 'suspended' AND suspended_until IS NOT NULL AND suspended_until <= ?
		ORDER BY suspended_until, id`), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query suspended vendors: %w", err)
	}
	defer rows.Close()

	due := make([]types.SuspendedVendor, 0)
	for rows.Next() {
		var v types.SuspendedVendor
		if err := rows.Scan(&v.ID, &v.Name, &v.SuspendedUntil); err != nil {
			return nil, fmt.Errorf("failed to scan suspended vendor: %w", err)
		}
		due = append(due, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suspended vendors: %w", err)
	}
	return due, nil
}

// ReactivateVendor approves a vendor whose suspension expired and records the
// audit entry in the same transaction
func (r *Repository) ReactivateVendor(ctx context.Context, v types.SuspendedVendor, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE vendors SET approval_status = 'approved',
		suspended_until = NULL, suspension_reason = NULL, suspended_by = NULL, updated_at = ?
		WHERE id = ? AND approval_status = 'suspended'`), now.UTC(), v.ID)
	if err != nil {
		return fmt.Errorf("failed to reactivate vendor %s: %w", v.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	err = r.insertAuditLog(ctx, tx, types.AuditLog{
		Action:      AuditReactivateVendor,
		EntityType:  "vendor",
		EntityID:    v.ID,
		Reason:      "Suspension period expired",
		PerformedBy: PerformedBySystem,
		Metadata:    map[string]string{"vendor_name": v.Name},
		Timestamp:   now,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vendor reactivation: %w", err)
	}
	return nil
}

// DueBans returns banned users whose ban has ended
func (r *Repository) DueBans(ctx context.Context, now time.Time) ([]types.BannedUser, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT id, name, email, banned_until FROM users
		WHERE is_banned = TRUE AND banned_until IS NOT NULL AND banned_until <= ?
		ORDER BY banned_until, id`), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query banned users: %w", err)
	}
	defer rows.Close()

	due := make([]types.BannedUser, 0)
	for rows.Next() {
		var u types.BannedUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.BannedUntil); err != nil {
			return nil, fmt.Errorf("failed to scan banned user: %w", err)
		}
		due = append(due, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate banned users: %w", err)
	}
	return due, nil
}

// UnbanUser lifts an expired ban and records the audit entry in the same transaction
func (r *Repository) UnbanUser(ctx context.Context, u types.BannedUser, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE users SET is_banned = FALSE, unbanned_at = ?,
		unbanned_by = ?, unban_reason = ? WHERE id = ? AND is_banned = TRUE`),
		now.UTC(), PerformedBySystem, "Ban period expired", u.ID)
	if err != nil {
		return fmt.Errorf("failed to unban user %s: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit()
	}

	err = r.insertAuditLog(ctx, tx, types.AuditLog{
		Action:      AuditUnbanUser,
		EntityType:  "user",
		EntityID:    u.ID,
		Reason:      "Ban period expired",
		PerformedBy: PerformedBySystem,
		Metadata:    map[string]string{"user_name": u.Name, "user_email": u.Email},
		Timestamp:   now,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user unban: %w", err)
	}
	return nil
}
