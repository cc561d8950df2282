// Package digest batches unread notifications into periodic emails for
// recipients who opted out of live email.
package digest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/strategy"
)

// RecordSource reads records addressed to one recipient.
type RecordSource interface {
	FetchForRecipientSince(ctx context.Context, userID int64, since time.Time, limit int) ([]*domain.NotificationRecord, error)
}

// RecipientLister lists candidate recipients per digest frequency.
type RecipientLister interface {
	ListByEmailFrequency(ctx context.Context, freq domain.EmailFrequency) ([]int64, error)
}

// SendLog anchors and advances the per-recipient digest window.
type SendLog interface {
	LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error)
	LogSent(ctx context.Context, userID int64, freq domain.EmailFrequency, sentAt time.Time) error
}

// EntityResolver loads the entities a batch references.
type EntityResolver interface {
	Resolve(ctx context.Context, records []*domain.NotificationRecord) (*domain.EntitySet, error)
}

// SettingsSource resolves recipient settings (fail-closed).
type SettingsSource interface {
	ResolveBatch(ctx context.Context, userIDs []int64) (map[int64]*domain.RecipientSettings, error)
}

// Renderer turns one record into per-recipient view models.
type Renderer interface {
	Resolve(rec *domain.NotificationRecord, entities *domain.EntitySet, settings map[int64]*domain.RecipientSettings) (*strategy.Result, error)
}

// DigestSender sends the aggregated email.
type DigestSender interface {
	DispatchDigest(ctx context.Context, s *domain.RecipientSettings, toName string, views []domain.EmailViewModel) error
}

// Aggregator builds and sends digest emails. One recipient's failure never
// blocks another's; a failed recipient keeps their window anchor and the
// whole batch is retried on the next pass.
type Aggregator struct {
	records    RecordSource
	recipients RecipientLister
	sendLog    SendLog
	entities   EntityResolver
	settings   SettingsSource
	renderer   Renderer
	sender     DigestSender

	maxPerEmail  int
	minUnreadAge time.Duration
}

func NewAggregator(
	records RecordSource,
	recipients RecipientLister,
	sendLog SendLog,
	entities EntityResolver,
	settings SettingsSource,
	renderer Renderer,
	sender DigestSender,
	maxPerEmail int,
	minUnreadAge time.Duration,
) *Aggregator {
	return &Aggregator{
		records:      records,
		recipients:   recipients,
		sendLog:      sendLog,
		entities:     entities,
		settings:     settings,
		renderer:     renderer,
		sender:       sender,
		maxPerEmail:  maxPerEmail,
		minUnreadAge: minUnreadAge,
	}
}

// defaultWindow is how far back the first digest for a recipient reaches.
func defaultWindow(freq domain.EmailFrequency) time.Duration {
	switch freq {
	case domain.EmailDaily:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Run sends one digest pass for every recipient on the given frequency.
func (a *Aggregator) Run(ctx context.Context, freq domain.EmailFrequency, now time.Time) error {
	userIDs, err := a.recipients.ListByEmailFrequency(ctx, freq)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.runOne(ctx, userID, freq, now); err != nil {
			logger.Warn("Digest pass failed for recipient; will retry next window",
				zap.Int64("user_id", userID),
				zap.String("frequency", string(freq)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// runOne aggregates, renders, and sends one recipient's digest. The send log
// entry is appended only after a successful send, so the window advances
// exactly once per delivered email and never past undelivered records.
func (a *Aggregator) runOne(ctx context.Context, userID int64, freq domain.EmailFrequency, now time.Time) error {
	since, ok, err := a.sendLog.LastSentAt(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		since = now.Add(-defaultWindow(freq))
	}

	batch, err := a.collect(ctx, userID, since, now)
	if err != nil {
		return err
	}
	if len(batch.Records) == 0 {
		return nil
	}

	settingsByUser, err := a.settings.ResolveBatch(ctx, []int64{userID})
	if err != nil {
		return err
	}
	s := settingsByUser[userID]
	if s == nil || !s.EmailEnabled() {
		return nil
	}

	entities, err := a.entities.Resolve(ctx, batch.Records)
	if err != nil {
		return err
	}

	// Oldest first; collect() preserves the fetch order.
	views := make([]domain.EmailViewModel, 0, len(batch.Records))
	for _, rec := range batch.Records {
		result, err := a.renderer.Resolve(rec, entities, settingsByUser)
		if err != nil {
			// Partial render aborts the whole batch; nothing is consumed.
			return err
		}
		if view, ok := result.Emails[userID]; ok {
			views = append(views, view)
		}
	}
	if len(views) == 0 {
		return nil
	}

	toName := ""
	if u, ok := entities.User(userID); ok {
		toName = u.Name
	}
	if err := a.sender.DispatchDigest(ctx, s, toName, views); err != nil {
		return err
	}
	return a.sendLog.LogSent(ctx, userID, freq, now)
}

// collect fetches the recipient's window, oldest first, excluding records too
// fresh to have finished the delivery cycle.
func (a *Aggregator) collect(ctx context.Context, userID int64, since, now time.Time) (*domain.DigestBatch, error) {
	records, err := a.records.FetchForRecipientSince(ctx, userID, since, a.maxPerEmail)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-a.minUnreadAge)
	kept := records[:0]
	for _, rec := range records {
		if !rec.CreatedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	return &domain.DigestBatch{UserID: userID, Records: kept}, nil
}
