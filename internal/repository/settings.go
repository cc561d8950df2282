package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/domain"
)

// SettingsRepository manages per-recipient notification preferences.
type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: pool}
}

// GetBatch returns stored preferences for the given users. Users without a
// settings row are absent from the result; callers decide the default.
// Devices are loaded separately via DeviceRepository.
func (r *SettingsRepository) GetBatch(ctx context.Context, userIDs []int64) (map[int64]*domain.RecipientSettings, error) {
	if len(userIDs) == 0 {
		return map[int64]*domain.RecipientSettings{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT user_id, enabled_push_types, enabled_browser_types,
		       email_frequency, email_address, is_deactivated
		FROM user_notification_settings
		WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]*domain.RecipientSettings, len(userIDs))
	for rows.Next() {
		var (
			s            domain.RecipientSettings
			pushTypes    []string
			browserTypes []string
			frequency    string
		)
		if err := rows.Scan(&s.UserID, &pushTypes, &browserTypes, &frequency, &s.EmailAddress, &s.IsDeactivated); err != nil {
			return nil, err
		}
		s.EnabledPushTypes = typeSet(pushTypes)
		s.EnabledBrowserTypes = typeSet(browserTypes)
		s.EmailFrequency = domain.EmailFrequency(frequency)
		out[s.UserID] = &s
	}
	return out, rows.Err()
}

// Get returns a single user's preferences, or nil when no row exists.
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*domain.RecipientSettings, error) {
	batch, err := r.GetBatch(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}
	return batch[userID], nil
}

// Upsert stores a user's preferences, replacing any previous row.
func (r *SettingsRepository) Upsert(ctx context.Context, s *domain.RecipientSettings) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_notification_settings
			(user_id, enabled_push_types, enabled_browser_types, email_frequency, email_address, is_deactivated, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id)
		DO UPDATE SET enabled_push_types = $2, enabled_browser_types = $3,
		              email_frequency = $4, email_address = $5,
		              is_deactivated = $6, updated_at = now()`,
		s.UserID, typeList(s.EnabledPushTypes), typeList(s.EnabledBrowserTypes),
		string(s.EmailFrequency), s.EmailAddress, s.IsDeactivated)
	return err
}

// ListByEmailFrequency returns ids of non-deactivated users with the given
// digest frequency and a usable email address.
func (r *SettingsRepository) ListByEmailFrequency(ctx context.Context, freq domain.EmailFrequency) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id
		FROM user_notification_settings
		WHERE email_frequency = $1
		  AND email_address <> ''
		  AND NOT is_deactivated
		ORDER BY user_id`, string(freq))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// typeSet converts the stored enabled-type list into the lookup map the
// delivery gate checks.
func typeSet(types []string) map[domain.NotificationType]bool {
	set := make(map[domain.NotificationType]bool, len(types))
	for _, t := range types {
		set[domain.NotificationType(t)] = true
	}
	return set
}

// typeList is the inverse of typeSet; only enabled entries persist.
func typeList(set map[domain.NotificationType]bool) []string {
	types := make([]string, 0, len(set))
	for t, enabled := range set {
		if enabled {
			types = append(types, string(t))
		}
	}
	return types
}
