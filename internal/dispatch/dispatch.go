// Package dispatch delivers rendered notifications over the three channels.
//
// Dispatchers apply the per-channel eligibility gates and outcome taxonomy;
// the actual provider calls live behind the transport interfaces so tests
// run against fakes.
package dispatch

import (
	"context"

	"waveline.io/courier/internal/domain"
)

// PushSender delivers one mobile push to one device.
type PushSender interface {
	SendPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage, badge int) error
}

// BrowserSender delivers one browser push to one subscription.
type BrowserSender interface {
	SendBrowserPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage) error
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, toName, toAddress, subject, plainBody, htmlBody string) error
}

// BadgeTracker is the once-per-group unread counter.
type BadgeTracker interface {
	Increment(ctx context.Context, userID int64, groupID string) (int, bool, error)
}

// DeadTokenSink receives tokens a transport reported permanently dead.
// Implementations must not fail the send path; reporting is fire-and-forget.
type DeadTokenSink interface {
	ReportDeadTokens(ctx context.Context, tokens []string)
}
