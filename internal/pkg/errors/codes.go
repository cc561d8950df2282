package errors

import "net/http"

// Error code constants. Errors carry code + message; handlers never build
// ad-hoc status codes.

// Notification pipeline error codes.
const (
	CodeRecordNotFound     = "RECORD_NOT_FOUND"
	CodeUnknownType        = "UNKNOWN_NOTIFICATION_TYPE"
	CodeMissingEntity      = "MISSING_ENTITY"
	CodeMalformedPayload   = "MALFORMED_PAYLOAD"
	CodeDispatchFailed     = "DISPATCH_FAILED"
	CodeDigestRenderFailed = "DIGEST_RENDER_FAILED"
)

// Settings/device error codes.
const (
	CodeSettingsNotFound  = "SETTINGS_NOT_FOUND"
	CodeInvalidDeviceType = "INVALID_DEVICE_TYPE"
	CodeDeviceNotFound    = "DEVICE_NOT_FOUND"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
)

// statusByCode maps codes to their canonical HTTP status.
var statusByCode = map[string]int{
	CodeRecordNotFound:      http.StatusNotFound,
	CodeSettingsNotFound:    http.StatusNotFound,
	CodeDeviceNotFound:      http.StatusNotFound,
	CodeUnknownType:         http.StatusBadRequest,
	CodeMalformedPayload:    http.StatusBadRequest,
	CodeInvalidDeviceType:   http.StatusBadRequest,
	CodeInvalidRequestField: http.StatusBadRequest,
	CodeAuthFailed:          http.StatusUnauthorized,
	CodeTokenExpired:        http.StatusUnauthorized,
	CodeTokenInvalid:        http.StatusUnauthorized,
	CodeMissingEntity:       http.StatusUnprocessableEntity,
	CodeDispatchFailed:      http.StatusInternalServerError,
	CodeDigestRenderFailed:  http.StatusInternalServerError,
}

// StatusForCode returns the HTTP status for a known code, defaulting to 500.
func StatusForCode(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
