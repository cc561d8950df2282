package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waveline.io/courier/internal/api/middleware"
	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

type settingsPayload struct {
	EnabledPushTypes    []string `json:"enabled_push_types"`
	EnabledBrowserTypes []string `json:"enabled_browser_types"`
	EmailFrequency      string   `json:"email_frequency"`
	EmailAddress        string   `json:"email_address"`
}

func settingsToPayload(s *domain.RecipientSettings) settingsPayload {
	return settingsPayload{
		EnabledPushTypes:    typeNames(s.EnabledPushTypes),
		EnabledBrowserTypes: typeNames(s.EnabledBrowserTypes),
		EmailFrequency:      string(s.EmailFrequency),
		EmailAddress:        s.EmailAddress,
	}
}

func typeNames(set map[domain.NotificationType]bool) []string {
	names := make([]string, 0, len(set))
	for t, enabled := range set {
		if enabled {
			names = append(names, string(t))
		}
	}
	return names
}

func typeSet(names []string) map[domain.NotificationType]bool {
	set := make(map[domain.NotificationType]bool, len(names))
	for _, n := range names {
		set[domain.NotificationType(n)] = true
	}
	return set
}

// GetSettings handles GET /notifications/settings. Users without a stored
// row get the fail-closed default: everything off.
func (s *Server) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	stored, err := s.settings.Get(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if stored == nil {
		disabled := domain.DisabledSettings(userID)
		stored = &disabled
	}
	c.JSON(http.StatusOK, settingsToPayload(stored))
}

// UpdateSettings handles POST /notifications/settings.
func (s *Server) UpdateSettings(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	var payload settingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		_ = c.Error(apperrors.BadRequest("INVALID_REQUEST", "malformed settings payload"))
		return
	}

	freq := domain.EmailFrequency(payload.EmailFrequency)
	switch freq {
	case domain.EmailLive, domain.EmailDaily, domain.EmailOff:
	default:
		_ = c.Error(apperrors.BadRequest("INVALID_REQUEST", "email_frequency must be live, daily or off"))
		return
	}

	updated := &domain.RecipientSettings{
		UserID:              userID,
		EnabledPushTypes:    typeSet(payload.EnabledPushTypes),
		EnabledBrowserTypes: typeSet(payload.EnabledBrowserTypes),
		EmailFrequency:      freq,
		EmailAddress:        payload.EmailAddress,
	}
	if err := s.settings.Upsert(ctx, updated); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, settingsToPayload(updated))
}
