package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/domain"
)

// EmailLogRepository records sent notification emails. The latest entry per
// user anchors the next digest window so no notification is digested twice.
type EmailLogRepository struct {
	db *pgxpool.Pool
}

func NewEmailLogRepository(pool *pgxpool.Pool) *EmailLogRepository {
	return &EmailLogRepository{db: pool}
}

// LastSentAt returns when the user last received a notification email.
// ok is false when the user has never received one.
func (r *EmailLogRepository) LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var sentAt time.Time
	err := r.db.QueryRow(ctx, `
		SELECT sent_at FROM notification_emails
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT 1`, userID).Scan(&sentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return sentAt, true, nil
}

// LogSent appends a send record for the user.
func (r *EmailLogRepository) LogSent(ctx context.Context, userID int64, freq domain.EmailFrequency, sentAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_emails (user_id, frequency, sent_at)
		VALUES ($1, $2, $3)`, userID, string(freq), sentAt)
	return err
}

// DeleteOlderThan prunes old log entries, keeping at least the most recent
// entry per user so digest windows stay anchored.
func (r *EmailLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notification_emails e
		WHERE sent_at < $1
		  AND EXISTS (
			SELECT 1 FROM notification_emails newer
			WHERE newer.user_id = e.user_id AND newer.sent_at > e.sent_at
		  )`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
