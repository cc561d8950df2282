// Package settings resolves per-recipient delivery preferences.
//
// Resolution fails closed: a recipient with no stored settings row gets a
// fully disabled profile rather than a default-enabled one, so a partial
// settings sync can never cause unwanted sends.
package settings

import (
	"context"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/repository"
)

// Resolver loads recipient settings with registered devices attached.
type Resolver struct {
	settings *repository.SettingsRepository
	devices  *repository.DeviceRepository
}

func NewResolver(settings *repository.SettingsRepository, devices *repository.DeviceRepository) *Resolver {
	return &Resolver{settings: settings, devices: devices}
}

// ResolveBatch returns settings for every requested user. The result always
// contains an entry per input id; missing rows resolve to DisabledSettings.
func (r *Resolver) ResolveBatch(ctx context.Context, userIDs []int64) (map[int64]*domain.RecipientSettings, error) {
	stored, err := r.settings.GetBatch(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	devices, err := r.devices.ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*domain.RecipientSettings, len(userIDs))
	for _, id := range userIDs {
		s, ok := stored[id]
		if !ok {
			disabled := domain.DisabledSettings(id)
			out[id] = &disabled
			continue
		}
		s.Devices = devices[id]
		out[id] = s
	}
	return out, nil
}
