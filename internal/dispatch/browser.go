package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/metrics"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
)

// BrowserDispatcher delivers a message to a recipient's browser channel.
// Unlike mobile push this is one logical channel: the newest subscription
// wins, and there is no badge side effect (web clients poll unread counts).
type BrowserDispatcher struct {
	sender      BrowserSender
	deadTokens  DeadTokenSink
	sendTimeout time.Duration
}

func NewBrowserDispatcher(sender BrowserSender, deadTokens DeadTokenSink, sendTimeout time.Duration) *BrowserDispatcher {
	return &BrowserDispatcher{
		sender:      sender,
		deadTokens:  deadTokens,
		sendTimeout: sendTimeout,
	}
}

// Dispatch sends to the recipient's most recent browser subscription, if any.
func (d *BrowserDispatcher) Dispatch(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, msg domain.RenderedMessage) error {
	if !s.BrowserEnabled(rec.Type) {
		return nil
	}

	var sub *domain.DeviceRegistration
	for i := range s.Devices {
		if s.Devices[i].Platform == domain.PlatformSafari {
			sub = &s.Devices[i]
		}
	}
	if sub == nil {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.sender.SendBrowserPush(sendCtx, *sub, msg)
	switch {
	case err == nil:
		metrics.SendsTotal.WithLabelValues("browser", "success").Inc()
		return nil
	case errors.Is(err, apperrors.ErrInvalidToken):
		metrics.SendsTotal.WithLabelValues("browser", "invalid_token").Inc()
		d.deadTokens.ReportDeadTokens(ctx, []string{sub.Token})
		return nil
	default:
		metrics.SendsTotal.WithLabelValues("browser", "transient_error").Inc()
		logger.Warn("Browser push failed",
			zap.Int64("user_id", s.UserID),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return apperrors.ErrTransient
	}
}
