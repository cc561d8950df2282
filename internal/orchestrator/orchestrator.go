// Package orchestrator drives the delivery cycle: claim a batch of
// unprocessed records, resolve context, render, dispatch, and settle each
// record's terminal state.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/metrics"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/pkg/worker"
	"waveline.io/courier/internal/strategy"
)

const cursorKey = "courier:cycle:cursor"

// RecordStore is the delivery-state side of the notification repository.
type RecordStore interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]*domain.NotificationRecord, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkSkipped(ctx context.Context, id string, reason domain.SkipReason) error
	IncrementAttempts(ctx context.Context, id string) (int, error)
}

// EntityResolver loads referenced entities for a batch.
type EntityResolver interface {
	Resolve(ctx context.Context, records []*domain.NotificationRecord) (*domain.EntitySet, error)
}

// SettingsResolver loads recipient settings, fail-closed.
type SettingsResolver interface {
	ResolveBatch(ctx context.Context, userIDs []int64) (map[int64]*domain.RecipientSettings, error)
}

// Renderer resolves a record into per-recipient messages.
type Renderer interface {
	Resolve(rec *domain.NotificationRecord, entities *domain.EntitySet, settings map[int64]*domain.RecipientSettings) (*strategy.Result, error)
}

// PushChannel, BrowserChannel and EmailChannel are the three dispatchers.
type PushChannel interface {
	Dispatch(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, msg domain.RenderedMessage) error
}

type BrowserChannel interface {
	Dispatch(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, msg domain.RenderedMessage) error
}

type EmailChannel interface {
	DispatchLive(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, toName string, view domain.EmailViewModel) error
}

// Config bounds one cycle.
type Config struct {
	BatchSize   int
	MaxAttempts int
}

// Orchestrator runs delivery cycles. Cycles are serialized across replicas
// by the Redis lease; within a cycle, records process in parallel on the
// worker pool and each recipient's channels dispatch in parallel.
type Orchestrator struct {
	records  RecordStore
	entities EntityResolver
	settings SettingsResolver
	renderer Renderer
	push     PushChannel
	browser  BrowserChannel
	email    EmailChannel
	lease    *Lease
	redis    *redis.Client
	pools    *worker.Pools
	cfg      Config
}

func New(
	records RecordStore,
	entities EntityResolver,
	settings SettingsResolver,
	renderer Renderer,
	push PushChannel,
	browser BrowserChannel,
	email EmailChannel,
	lease *Lease,
	redisClient *redis.Client,
	pools *worker.Pools,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		records:  records,
		entities: entities,
		settings: settings,
		renderer: renderer,
		push:     push,
		browser:  browser,
		email:    email,
		lease:    lease,
		redis:    redisClient,
		pools:    pools,
		cfg:      cfg,
	}
}

// RunCycle executes one delivery cycle. A cycle that loses the leader
// election is not an error; the holder's cycle covers the queue.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	acquired, err := o.lease.Acquire(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return err
	}
	if !acquired {
		metrics.CyclesTotal.WithLabelValues("lock_held").Inc()
		return nil
	}
	defer func() {
		if err := o.lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Cycle lease release failed", zap.Error(err))
		}
	}()

	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	records, err := o.records.FetchUnprocessed(ctx, o.cfg.BatchSize)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return err
	}
	if len(records) == 0 {
		metrics.CyclesTotal.WithLabelValues("completed").Inc()
		return nil
	}

	entities, settingsByUser, err := o.resolveContext(ctx, records)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return err
	}

	var wg sync.WaitGroup
	for _, rec := range records {
		rec := rec
		wg.Add(1)
		submitErr := o.pools.General.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			o.processRecord(ctx, rec, entities, settingsByUser)
		})
		if submitErr != nil {
			wg.Done()
			logger.Warn("Record submission failed; left for next cycle",
				zap.String("record_id", rec.ID),
				zap.Error(submitErr),
			)
		}
	}
	wg.Wait()

	last := records[len(records)-1]
	if err := o.redis.Set(ctx, cursorKey, last.ID, 0).Err(); err != nil {
		logger.Warn("Cycle cursor update failed", zap.Error(err))
	}

	logger.Info("Delivery cycle completed",
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)),
	)
	metrics.CyclesTotal.WithLabelValues("completed").Inc()
	return nil
}

// resolveContext loads entities and settings for the batch concurrently.
func (o *Orchestrator) resolveContext(ctx context.Context, records []*domain.NotificationRecord) (*domain.EntitySet, map[int64]*domain.RecipientSettings, error) {
	recipientSet := make(map[int64]struct{})
	for _, rec := range records {
		for _, id := range rec.RecipientUserIDs {
			recipientSet[id] = struct{}{}
		}
	}
	recipientIDs := make([]int64, 0, len(recipientSet))
	for id := range recipientSet {
		recipientIDs = append(recipientIDs, id)
	}

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		firstErr       error
		entities       *domain.EntitySet
		settingsByUser map[int64]*domain.RecipientSettings
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(2)
	tasks := []worker.Task{
		func(ctx context.Context) {
			defer wg.Done()
			set, err := o.entities.Resolve(ctx, records)
			if err != nil {
				fail(err)
				return
			}
			entities = set
		},
		func(ctx context.Context) {
			defer wg.Done()
			s, err := o.settings.ResolveBatch(ctx, recipientIDs)
			if err != nil {
				fail(err)
				return
			}
			settingsByUser = s
		},
	}
	for _, task := range tasks {
		if err := o.pools.General.Submit(ctx, task); err != nil {
			wg.Done()
			fail(err)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return entities, settingsByUser, nil
}

// processRecord renders and dispatches one record, then settles its state:
// Processed on full success, Skipped on data errors or an exhausted retry
// budget, untouched on transient failure so the next cycle retries.
func (o *Orchestrator) processRecord(ctx context.Context, rec *domain.NotificationRecord, entities *domain.EntitySet, settingsByUser map[int64]*domain.RecipientSettings) {
	if len(rec.RecipientUserIDs) == 0 {
		o.skip(ctx, rec, domain.SkipNoRecipients)
		return
	}
	if rec.Attempts >= o.cfg.MaxAttempts {
		o.skip(ctx, rec, domain.SkipRetryBudget)
		return
	}

	result, err := o.renderer.Resolve(rec, entities, settingsByUser)
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			switch appErr.Code {
			case apperrors.CodeUnknownType:
				o.skip(ctx, rec, domain.SkipUnknownType)
				return
			case apperrors.CodeMissingEntity:
				o.skip(ctx, rec, domain.SkipMissingEntity)
				return
			}
		}
		logger.Error("Record render failed; left for next cycle",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		o.retry(ctx, rec)
		return
	}

	transient := false
	for recipientID, msg := range result.Messages {
		s := settingsByUser[recipientID]
		if s == nil {
			continue
		}
		toName := ""
		if u, ok := entities.User(recipientID); ok {
			toName = u.Name
		}
		if o.dispatchRecipient(ctx, rec, s, toName, msg, result.Emails[recipientID]) {
			transient = true
		}
	}

	if transient {
		o.retry(ctx, rec)
		return
	}
	if err := o.records.MarkProcessed(ctx, rec.ID); err != nil {
		logger.Error("Mark processed failed",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordsProcessed.WithLabelValues("processed").Inc()
}

// dispatchRecipient fans one recipient's three channels out in parallel.
// Reports whether any channel failed transiently.
func (o *Orchestrator) dispatchRecipient(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, toName string, msg domain.RenderedMessage, view domain.EmailViewModel) bool {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		transient bool
	)
	note := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if errors.Is(err, apperrors.ErrTransient) {
			transient = true
		}
	}

	channels := []worker.Task{
		func(ctx context.Context) { defer wg.Done(); note(o.push.Dispatch(ctx, rec, s, msg)) },
		func(ctx context.Context) { defer wg.Done(); note(o.browser.Dispatch(ctx, rec, s, msg)) },
		func(ctx context.Context) { defer wg.Done(); note(o.email.DispatchLive(ctx, rec, s, toName, view)) },
	}
	wg.Add(len(channels))
	for _, ch := range channels {
		if err := o.pools.General.Submit(ctx, ch); err != nil {
			wg.Done()
			note(apperrors.ErrTransient)
		}
	}
	wg.Wait()
	return transient
}

func (o *Orchestrator) skip(ctx context.Context, rec *domain.NotificationRecord, reason domain.SkipReason) {
	if err := o.records.MarkSkipped(ctx, rec.ID, reason); err != nil {
		logger.Error("Mark skipped failed",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	logger.Info("Record skipped",
		zap.String("record_id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.String("reason", string(reason)),
	)
	metrics.RecordsProcessed.WithLabelValues("skipped").Inc()
}

func (o *Orchestrator) retry(ctx context.Context, rec *domain.NotificationRecord) {
	if _, err := o.records.IncrementAttempts(ctx, rec.ID); err != nil {
		logger.Error("Attempt increment failed",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordsProcessed.WithLabelValues("retried").Inc()
}
