// Package badge maintains per-user unread badge counts for mobile push.
//
// A count increments at most once per (user, group) pair regardless of how
// many records or devices a group fans out to. The guard table enforces this
// inside a single SQL statement so concurrent cycles cannot double-count.
package badge

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/metrics"
)

// Tracker tracks unread badge counts.
type Tracker struct {
	db *pgxpool.Pool
}

func NewTracker(pool *pgxpool.Pool) *Tracker {
	return &Tracker{db: pool}
}

// Increment bumps the user's badge count for a notification group. Returns
// the current count and whether this call applied an increment. A repeat call
// for the same (user, group) leaves the count unchanged.
func (t *Tracker) Increment(ctx context.Context, userID int64, groupID string) (int, bool, error) {
	var (
		count       int
		incremented bool
	)
	err := t.db.QueryRow(ctx, `
		WITH guard AS (
			INSERT INTO notification_badge_groups (user_id, group_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, group_id) DO NOTHING
			RETURNING 1
		),
		bumped AS (
			INSERT INTO notification_badge_counts (user_id, count)
			SELECT $1, 1 FROM guard
			ON CONFLICT (user_id)
			DO UPDATE SET count = notification_badge_counts.count + 1, updated_at = now()
			RETURNING count
		)
		SELECT
			COALESCE((SELECT count FROM bumped),
			         (SELECT count FROM notification_badge_counts WHERE user_id = $1), 0),
			EXISTS (SELECT 1 FROM guard)`,
		userID, groupID).Scan(&count, &incremented)
	if err != nil {
		return 0, false, err
	}
	if incremented {
		metrics.BadgeIncrements.Inc()
	}
	return count, incremented, nil
}

// Count returns the user's current badge count. Unknown users read as zero.
func (t *Tracker) Count(ctx context.Context, userID int64) (int, error) {
	var count int
	err := t.db.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT count FROM notification_badge_counts WHERE user_id = $1), 0)`,
		userID).Scan(&count)
	return count, err
}

// Reset zeroes the user's count and clears the group guard rows so future
// activity counts again. Called when the client reports the inbox as read.
func (t *Tracker) Reset(ctx context.Context, userID int64) error {
	_, err := t.db.Exec(ctx, `
		WITH cleared AS (
			DELETE FROM notification_badge_groups WHERE user_id = $1
		)
		UPDATE notification_badge_counts
		SET count = 0, updated_at = now()
		WHERE user_id = $1`, userID)
	return err
}
