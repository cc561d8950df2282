package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"waveline.io/courier/internal/pkg/logger"
)

// DefaultRetention is the baseline for settled notification records and
// superseded email log rows.
const DefaultRetention = 30 * 24 * time.Hour

// RetentionStore prunes rows older than a cutoff.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionCleanupArgs is the periodic job that prunes settled notification
// records and stale email log entries.
type RetentionCleanupArgs struct{}

// Kind returns the job kind identifier for retention cleanup.
func (RetentionCleanupArgs) Kind() string { return "retention_cleanup" }

// InsertOpts ensures at most one cleanup job is enqueued within the same day.
func (RetentionCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// RetentionCleanupWorker prunes settled records and stale email log rows.
type RetentionCleanupWorker struct {
	river.WorkerDefaults[RetentionCleanupArgs]
	records   RetentionStore
	emailLog  RetentionStore
	retention time.Duration
}

// NewRetentionCleanupWorker creates a cleanup worker. Non-positive retention
// falls back to the 30-day default.
func NewRetentionCleanupWorker(records, emailLog RetentionStore, retention time.Duration) *RetentionCleanupWorker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RetentionCleanupWorker{
		records:   records,
		emailLog:  emailLog,
		retention: retention,
	}
}

// Work removes rows older than the retention cutoff.
func (w *RetentionCleanupWorker) Work(ctx context.Context, _ *river.Job[RetentionCleanupArgs]) error {
	if w == nil || w.records == nil || w.emailLog == nil {
		return fmt.Errorf("retention cleanup worker is not initialized")
	}

	cutoff := time.Now().UTC().Add(-w.retention)
	records, err := w.records.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete settled records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	emails, err := w.emailLog.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete email log rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("Retention cleanup completed",
		zap.Int64("deleted_records", records),
		zap.Int64("deleted_email_rows", emails),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("retention", w.retention),
	)
	return nil
}
