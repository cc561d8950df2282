package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"waveline.io/courier/internal/config"
	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// WebPushTransport sends browser push notifications via the Web Push
// protocol with VAPID authentication. A browser device's token column holds
// the serialized push subscription JSON.
type WebPushTransport struct {
	options *webpush.Options
}

func NewWebPushTransport(cfg config.WebPushConfig) *WebPushTransport {
	return &WebPushTransport{
		options: &webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
		},
	}
}

// browserPayload is what the service worker receives.
type browserPayload struct {
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	DeepLink map[string]string `json:"data,omitempty"`
}

// SendBrowserPush delivers a rendered message to one browser subscription.
// Gone subscriptions (404/410) surface as dead tokens so the cleanup job can
// drop them.
func (t *WebPushTransport) SendBrowserPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(dev.Token), &sub); err != nil {
		return fmt.Errorf("%w: malformed push subscription: %w", apperrors.ErrInvalidToken, err)
	}

	payload, err := json.Marshal(browserPayload{
		Title:    msg.Title,
		Message:  msg.Body,
		DeepLink: msg.DeepLink,
	})
	if err != nil {
		return fmt.Errorf("marshal browser payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, t.options)
	if err != nil {
		return fmt.Errorf("%w: webpush send: %w", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: subscription gone (%d)", apperrors.ErrInvalidToken, resp.StatusCode)
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: push service responded %d", apperrors.ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("push service rejected message with status %d", resp.StatusCode)
	}
}
