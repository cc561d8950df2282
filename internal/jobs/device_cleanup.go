package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"waveline.io/courier/internal/pkg/logger"
)

// TokenStore deletes dead device tokens and reports their provider ARNs.
type TokenStore interface {
	DeleteByTokens(ctx context.Context, tokens []string) ([]string, error)
}

// EndpointDeleter retires a provider-side push endpoint.
type EndpointDeleter interface {
	DeleteEndpoint(ctx context.Context, targetARN string) error
}

// DeviceCleanupArgs removes device tokens a transport reported as dead.
type DeviceCleanupArgs struct {
	Tokens []string `json:"tokens"`
}

// Kind returns the job kind identifier for device token cleanup.
func (DeviceCleanupArgs) Kind() string { return "device_cleanup" }

// InsertOpts allows retries; deleting an already-deleted token is a no-op.
func (DeviceCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 3,
	}
}

// DeviceCleanupWorker deletes dead tokens and their provider endpoints.
type DeviceCleanupWorker struct {
	river.WorkerDefaults[DeviceCleanupArgs]
	tokens    TokenStore
	endpoints EndpointDeleter
}

func NewDeviceCleanupWorker(tokens TokenStore, endpoints EndpointDeleter) *DeviceCleanupWorker {
	return &DeviceCleanupWorker{tokens: tokens, endpoints: endpoints}
}

// Work deletes the reported tokens, then best-effort retires each freed
// endpoint. Endpoint deletion failures are logged, not retried; SNS disables
// dead endpoints on its own.
func (w *DeviceCleanupWorker) Work(ctx context.Context, job *river.Job[DeviceCleanupArgs]) error {
	if w == nil || w.tokens == nil {
		return fmt.Errorf("device cleanup worker is not initialized")
	}
	if len(job.Args.Tokens) == 0 {
		return nil
	}

	arns, err := w.tokens.DeleteByTokens(ctx, job.Args.Tokens)
	if err != nil {
		return fmt.Errorf("delete dead device tokens: %w", err)
	}

	if w.endpoints != nil {
		for _, arn := range arns {
			if err := w.endpoints.DeleteEndpoint(ctx, arn); err != nil {
				logger.Warn("Endpoint deletion failed",
					zap.String("target_arn", arn),
					zap.Error(err),
				)
			}
		}
	}

	logger.Info("Device cleanup completed",
		zap.Int("reported", len(job.Args.Tokens)),
		zap.Int("deleted", len(arns)),
	)
	return nil
}
