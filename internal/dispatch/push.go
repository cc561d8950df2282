package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/metrics"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/pkg/worker"
)

// PushDispatcher fans a rendered message out to a recipient's mobile devices.
type PushDispatcher struct {
	sender      PushSender
	badges      BadgeTracker
	deadTokens  DeadTokenSink
	pools       *worker.Pools
	sendTimeout time.Duration
}

func NewPushDispatcher(sender PushSender, badges BadgeTracker, deadTokens DeadTokenSink, pools *worker.Pools, sendTimeout time.Duration) *PushDispatcher {
	return &PushDispatcher{
		sender:      sender,
		badges:      badges,
		deadTokens:  deadTokens,
		pools:       pools,
		sendTimeout: sendTimeout,
	}
}

// Dispatch sends the message to every mobile device of one recipient.
// The badge increments at most once per (recipient, group) no matter how many
// devices or reprocessing attempts follow; devices send in parallel with a
// bounded timeout each. Invalid tokens are reported for async cleanup and do
// not fail the dispatch; any transient device failure makes the whole call
// transient so the next cycle retries.
func (d *PushDispatcher) Dispatch(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, msg domain.RenderedMessage) error {
	if !s.PushEnabled(rec.Type) {
		return nil
	}

	count, _, err := d.badges.Increment(ctx, s.UserID, rec.GroupID)
	if err != nil {
		return errors.Join(apperrors.ErrTransient, err)
	}

	mobile := make([]domain.DeviceRegistration, 0, len(s.Devices))
	for _, dev := range s.Devices {
		if dev.Platform == domain.PlatformIOS || dev.Platform == domain.PlatformAndroid {
			mobile = append(mobile, dev)
		}
	}
	if len(mobile) == 0 {
		return nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		dead      []string
		transient bool
	)
	for _, dev := range mobile {
		dev := dev
		wg.Add(1)
		err := d.pools.Delivery.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			err := d.sender.SendPush(sendCtx, dev, msg, count)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				metrics.SendsTotal.WithLabelValues("push", "success").Inc()
			case errors.Is(err, apperrors.ErrInvalidToken):
				metrics.SendsTotal.WithLabelValues("push", "invalid_token").Inc()
				dead = append(dead, dev.Token)
				logger.Info("Dead device token reported",
					zap.Int64("user_id", s.UserID),
					zap.String("platform", string(dev.Platform)),
				)
			default:
				metrics.SendsTotal.WithLabelValues("push", "transient_error").Inc()
				transient = true
				logger.Warn("Push send failed",
					zap.Int64("user_id", s.UserID),
					zap.String("record_id", rec.ID),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			transient = true
			mu.Unlock()
		}
	}
	wg.Wait()

	if len(dead) > 0 {
		d.deadTokens.ReportDeadTokens(ctx, dead)
	}
	if transient {
		return apperrors.ErrTransient
	}
	return nil
}
