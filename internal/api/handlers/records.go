package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waveline.io/courier/internal/api/middleware"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// MarkProcessed handles POST /notifications/:id/processed. It exists for
// operational replays; marking an already-processed record is a no-op.
func (s *Server) MarkProcessed(c *gin.Context) {
	ctx := c.Request.Context()
	if middleware.GetUserID(ctx) == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		_ = c.Error(apperrors.BadRequest("INVALID_REQUEST", "notification id must be a uuid"))
		return
	}

	if err := s.records.MarkProcessed(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
