package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"waveline.io/courier/internal/domain"
)

// DigestRunner aggregates and sends one digest run.
type DigestRunner interface {
	Run(ctx context.Context, freq domain.EmailFrequency, now time.Time) error
}

// DigestDispatchArgs triggers a digest run for one frequency bucket.
type DigestDispatchArgs struct {
	Frequency domain.EmailFrequency `json:"frequency"`
}

// Kind returns the job kind identifier for digest dispatch.
func (DigestDispatchArgs) Kind() string { return "digest_dispatch" }

// InsertOpts ensures at most one digest run per frequency within a day.
// The send log makes reruns idempotent, so a retry after a partial failure
// only reaches the recipients that were missed.
func (DigestDispatchArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// DigestDispatchWorker runs the digest aggregator.
type DigestDispatchWorker struct {
	river.WorkerDefaults[DigestDispatchArgs]
	runner DigestRunner
}

func NewDigestDispatchWorker(runner DigestRunner) *DigestDispatchWorker {
	return &DigestDispatchWorker{runner: runner}
}

// Work runs one digest pass for the job's frequency bucket.
func (w *DigestDispatchWorker) Work(ctx context.Context, job *river.Job[DigestDispatchArgs]) error {
	if w == nil || w.runner == nil {
		return fmt.Errorf("digest dispatch worker is not initialized")
	}
	freq := job.Args.Frequency
	if freq != domain.EmailDaily {
		return fmt.Errorf("digest dispatch does not handle frequency %q", freq)
	}
	return w.runner.Run(ctx, freq, time.Now().UTC())
}
