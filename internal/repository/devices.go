package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// DeviceRepository manages mobile and browser push registrations.
type DeviceRepository struct {
	db *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{db: pool}
}

// Register upserts a device token. Re-registering an existing token for the
// same user refreshes platform and target ARN in place.
func (r *DeviceRepository) Register(ctx context.Context, userID int64, dev domain.DeviceRegistration) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_device_tokens (user_id, platform, token, target_arn, enabled)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = $2, target_arn = $4, enabled = true`,
		userID, string(dev.Platform), dev.Token, dev.TargetARN)
	return err
}

// Deregister removes a device token and returns its target ARN so the caller
// can delete the provider-side endpoint.
func (r *DeviceRepository) Deregister(ctx context.Context, userID int64, token string) (string, error) {
	var targetARN string
	err := r.db.QueryRow(ctx, `
		DELETE FROM notification_device_tokens
		WHERE user_id = $1 AND token = $2
		RETURNING target_arn`, userID, token).Scan(&targetARN)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound(apperrors.CodeDeviceNotFound, "device token not registered")
		}
		return "", err
	}
	return targetARN, nil
}

// ListByUsers returns all registered devices for a set of users.
func (r *DeviceRepository) ListByUsers(ctx context.Context, userIDs []int64) (map[int64][]domain.DeviceRegistration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, platform, token, target_arn
		FROM notification_device_tokens
		WHERE user_id = ANY($1) AND enabled`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make(map[int64][]domain.DeviceRegistration)
	for rows.Next() {
		var (
			userID   int64
			platform string
			dev      domain.DeviceRegistration
		)
		if err := rows.Scan(&userID, &platform, &dev.Token, &dev.TargetARN); err != nil {
			return nil, err
		}
		dev.Platform = domain.Platform(platform)
		devices[userID] = append(devices[userID], dev)
	}
	return devices, rows.Err()
}

// DeleteByTokens removes tokens reported dead by a transport and returns the
// target ARNs of the deleted rows so the caller can retire the provider-side
// endpoints. Missing tokens are ignored.
func (r *DeviceRepository) DeleteByTokens(ctx context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		DELETE FROM notification_device_tokens
		WHERE token = ANY($1)
		RETURNING target_arn`, tokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arns []string
	for rows.Next() {
		var arn string
		if err := rows.Scan(&arn); err != nil {
			return nil, err
		}
		if arn != "" {
			arns = append(arns, arn)
		}
	}
	return arns, rows.Err()
}
