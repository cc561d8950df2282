// Package jobs defines the River background jobs that drive Courier's
// periodic work: the delivery cycle, digest dispatch, dead-token cleanup and
// record retention.
package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
)

// CycleRunner runs one delivery cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// DeliveryCycleArgs triggers one delivery cycle. Cycles are cheap to attempt;
// a replica that loses the leader lease returns immediately.
type DeliveryCycleArgs struct{}

// Kind returns the job kind identifier for the delivery cycle.
func (DeliveryCycleArgs) Kind() string { return "delivery_cycle" }

// InsertOpts keeps cycle jobs single-shot; the periodic scheduler enqueues
// the next one regardless of this one's outcome.
func (DeliveryCycleArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
	}
}

// DeliveryCycleWorker runs the orchestrator's cycle.
type DeliveryCycleWorker struct {
	river.WorkerDefaults[DeliveryCycleArgs]
	runner CycleRunner
}

func NewDeliveryCycleWorker(runner CycleRunner) *DeliveryCycleWorker {
	return &DeliveryCycleWorker{runner: runner}
}

// Work executes one delivery cycle.
func (w *DeliveryCycleWorker) Work(ctx context.Context, _ *river.Job[DeliveryCycleArgs]) error {
	if w == nil || w.runner == nil {
		return fmt.Errorf("delivery cycle worker is not initialized")
	}
	return w.runner.RunCycle(ctx)
}
