package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/types"
)

// RecentRecommendations returns recommendations generated at or after since,
// newest first, at most limit rows
func (r *Repository) RecentRecommendations(ctx context.Context, since time.Time, limit int) ([]types.RecommendationLogEntry, error) {
	query := r.db.Rebind(`SELECT id, user_id, item_id, score, generated_at
		FROM recommendations WHERE generated_at >= ?
		ORDER BY generated_at DESC, id LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	window := make([]types.RecommendationLogEntry, 0)
	for rows.Next() {
		var (
			rec   types.RecommendationLogEntry
			score sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ItemID, &score, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.Score = floatPtr(score)
		rec.GeneratedAt = rec.GeneratedAt.UTC()
		window = append(window, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}
	return window, nil
}
