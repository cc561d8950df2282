package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waveline.io/courier/internal/api/middleware"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

type badgeResponse struct {
	Count int `json:"count"`
}

// GetBadge handles GET /notifications/badge.
func (s *Server) GetBadge(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	count, err := s.badges.Count(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, badgeResponse{Count: count})
}

// ClearBadge handles POST /notifications/badge/clear. Clients call it when
// the notification inbox is opened; the next delivered group starts a fresh
// count.
func (s *Server) ClearBadge(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	if err := s.badges.Reset(ctx, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
