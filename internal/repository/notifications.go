// Package repository provides Postgres persistence for the delivery pipeline.
//
// All repositories share the pgx pool created by infrastructure and use plain
// SQL; there is no ORM layer.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// NotificationRepository manages notification delivery records.
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: pool}
}

// Insert stores a new notification record, assigning an id when the caller
// left it empty. GroupID collisions are allowed; records sharing a group are
// deduplicated downstream at delivery time.
func (r *NotificationRepository) Insert(ctx context.Context, rec *domain.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (id, type, group_id, recipient_user_ids, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, string(rec.Type), rec.GroupID, rec.RecipientUserIDs, payload, rec.CreatedAt)
	return err
}

// FetchUnprocessed returns the oldest unprocessed records, capped at limit.
// Records already marked processed or skipped are excluded.
func (r *NotificationRepository) FetchUnprocessed(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, type, group_id, recipient_user_ids, payload, created_at, attempts
		FROM notifications
		WHERE processed_at IS NULL AND skipped_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FetchForRecipientSince returns records addressed to a recipient created
// after the given time, oldest first. Used by the digest aggregator; skipped
// records are excluded.
func (r *NotificationRepository) FetchForRecipientSince(ctx context.Context, userID int64, since time.Time, limit int) ([]*domain.NotificationRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, type, group_id, recipient_user_ids, payload, created_at, attempts
		FROM notifications
		WHERE recipient_user_ids @> ARRAY[$1]::bigint[]
		  AND created_at > $2
		  AND skipped_at IS NULL
		ORDER BY created_at
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// MarkProcessed records successful delivery. Idempotent: a second call on the
// same record is a no-op and returns nil.
func (r *NotificationRepository) MarkProcessed(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET processed_at = now()
		WHERE id = $1 AND processed_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either already processed (idempotent success) or unknown id.
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperrors.NotFound(apperrors.CodeRecordNotFound, "notification record not found")
		}
	}
	return nil
}

// MarkSkipped terminally skips a record with a reason.
func (r *NotificationRepository) MarkSkipped(ctx context.Context, id string, reason domain.SkipReason) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET skipped_at = now(), skip_reason = $2
		WHERE id = $1 AND processed_at IS NULL AND skipped_at IS NULL`,
		id, string(reason))
	return err
}

// IncrementAttempts bumps the retry counter after a transient failure and
// returns the new count. The record stays unprocessed for the next cycle.
func (r *NotificationRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx, `
		UPDATE notifications SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound(apperrors.CodeRecordNotFound, "notification record not found")
		}
		return 0, err
	}
	return attempts, nil
}

// DeleteOlderThan removes terminally handled records older than the cutoff.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE created_at < $1
		  AND (processed_at IS NOT NULL OR skipped_at IS NOT NULL)`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecords(rows pgx.Rows) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	for rows.Next() {
		var (
			rec     domain.NotificationRecord
			typ     string
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &typ, &rec.GroupID, &rec.RecipientUserIDs, &payload, &rec.CreatedAt, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Type = domain.NotificationType(typ)
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeMalformedPayload, "unmarshal notification payload", http.StatusInternalServerError)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
