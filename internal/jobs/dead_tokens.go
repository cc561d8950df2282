package jobs

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"waveline.io/courier/internal/pkg/logger"
)

// DeadTokenReporter turns dead-token reports from the dispatchers into
// queued cleanup jobs. Reporting is best-effort; a lost report only delays
// cleanup until the token fails again.
//
// The reporter is created before the River client exists (dispatchers need
// it, and the cycle worker that needs the dispatchers is registered on the
// client), so the client is bound late.
type DeadTokenReporter struct {
	mu     sync.RWMutex
	client *river.Client[pgx.Tx]
}

func NewDeadTokenReporter() *DeadTokenReporter {
	return &DeadTokenReporter{}
}

// Bind attaches the River client once it exists.
func (r *DeadTokenReporter) Bind(client *river.Client[pgx.Tx]) {
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
}

// ReportDeadTokens enqueues a device cleanup job for the given tokens.
func (r *DeadTokenReporter) ReportDeadTokens(ctx context.Context, tokens []string) {
	if r == nil || len(tokens) == 0 {
		return
	}
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client == nil {
		logger.Warn("Dead token report dropped: queue not ready",
			zap.Int("tokens", len(tokens)),
		)
		return
	}
	if _, err := client.Insert(ctx, DeviceCleanupArgs{Tokens: tokens}, nil); err != nil {
		logger.Warn("Dead token report failed",
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
	}
}
