package domain

// EmailFrequency controls how often a recipient gets notification email.
type EmailFrequency string

const (
	EmailLive  EmailFrequency = "live"
	EmailDaily EmailFrequency = "daily"
	EmailOff   EmailFrequency = "off"
)

// Platform identifies a registered device's push platform.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformSafari  Platform = "safari"
)

// DeviceRegistration is one push-capable device of a recipient.
type DeviceRegistration struct {
	Platform  Platform
	Token     string
	TargetARN string
}

// RecipientSettings is the per-recipient snapshot fetched fresh each dispatch
// cycle. The zero value is fully disabled, which is the fail-closed default
// for recipients with no settings on record.
type RecipientSettings struct {
	UserID              int64
	EnabledPushTypes    map[NotificationType]bool
	EnabledBrowserTypes map[NotificationType]bool
	Devices             []DeviceRegistration
	EmailFrequency      EmailFrequency
	EmailAddress        string
	IsDeactivated       bool
}

// DisabledSettings returns the fail-closed default used when a recipient has
// no settings row: every channel stays silent.
func DisabledSettings(userID int64) RecipientSettings {
	return RecipientSettings{
		UserID:         userID,
		EmailFrequency: EmailOff,
	}
}

// PushEnabled reports whether mobile push is on for the given type.
func (s RecipientSettings) PushEnabled(t NotificationType) bool {
	return !s.IsDeactivated && s.EnabledPushTypes[t] && len(s.Devices) > 0
}

// BrowserEnabled reports whether browser push is on for the given type.
func (s RecipientSettings) BrowserEnabled(t NotificationType) bool {
	return !s.IsDeactivated && s.EnabledBrowserTypes[t]
}

// EmailEnabled reports whether any email (live or digest) may be sent.
func (s RecipientSettings) EmailEnabled() bool {
	return !s.IsDeactivated && s.EmailFrequency != EmailOff && s.EmailAddress != ""
}
