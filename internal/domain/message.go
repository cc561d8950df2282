package domain

// RenderedMessage is the channel-agnostic output of a strategy for one
// recipient: a title, a body and the deep-link payload clients use to route
// taps. DeepLink always carries an "id" embedding the record's groupId so
// duplicate enqueues are detectable downstream.
type RenderedMessage struct {
	Title    string
	Body     string
	DeepLink map[string]string
}

// EmailViewModel is the per-notification view the email renderer consumes.
// Summary is the one-line sentence used both in digest bodies and in the
// preview snippet.
type EmailViewModel struct {
	Type    NotificationType
	Summary string
}

// DeliveryOutcome classifies one transport call.
type DeliveryOutcome string

const (
	OutcomeSuccess        DeliveryOutcome = "success"
	OutcomeInvalidToken   DeliveryOutcome = "invalid_token"
	OutcomeTransientError DeliveryOutcome = "transient_error"
)

// Terminal reports whether the outcome needs no retry.
func (o DeliveryOutcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeInvalidToken
}

// DeliveryResult is the per-device result of a push fan-out.
type DeliveryResult struct {
	Device  DeviceRegistration
	Outcome DeliveryOutcome
	Err     error
}

// DigestBatch is a recipient-scoped, time-ordered run of records destined for
// one digest email. Built by the aggregator, consumed exactly once.
type DigestBatch struct {
	UserID  int64
	Records []*NotificationRecord
}
