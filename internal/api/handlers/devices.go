package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"waveline.io/courier/internal/api/middleware"
	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
)

type registerDeviceRequest struct {
	Platform string `json:"platform" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

type deregisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterDevice handles POST /notifications/device. Mobile platforms get a
// provider endpoint before the token row is stored; safari tokens are
// serialized web push subscriptions and need no endpoint.
func (s *Server) RegisterDevice(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("INVALID_REQUEST", "platform and token are required"))
		return
	}

	platform := domain.Platform(req.Platform)
	var targetARN string
	switch platform {
	case domain.PlatformIOS, domain.PlatformAndroid:
		arn, err := s.endpoints.CreateEndpoint(ctx, platform, req.Token)
		if err != nil {
			_ = c.Error(err)
			return
		}
		targetARN = arn
	case domain.PlatformSafari:
	default:
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidDeviceType, "platform must be ios, android or safari"))
		return
	}

	dev := domain.DeviceRegistration{
		Platform:  platform,
		Token:     req.Token,
		TargetARN: targetARN,
	}
	if err := s.devices.Register(ctx, userID, dev); err != nil {
		_ = c.Error(err)
		return
	}

	logger.Info("Device registered",
		zap.Int64("user_id", userID),
		zap.String("platform", req.Platform),
	)
	c.Status(http.StatusNoContent)
}

// DeregisterDevice handles POST /notifications/device/deregister.
func (s *Server) DeregisterDevice(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(ctx)
	if userID == 0 {
		_ = c.Error(apperrors.Unauthorized("UNAUTHORIZED", "authentication required"))
		return
	}

	var req deregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("INVALID_REQUEST", "token is required"))
		return
	}

	targetARN, err := s.devices.Deregister(ctx, userID, req.Token)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if targetARN != "" {
		if err := s.endpoints.DeleteEndpoint(ctx, targetARN); err != nil {
			logger.Warn("Endpoint deletion failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}

	c.Status(http.StatusNoContent)
}
