// Package handlers implements Courier's HTTP API: badge counts, notification
// settings, device registration and record acknowledgement.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"waveline.io/courier/internal/domain"
)

// BadgeCounter reads and resets unseen-notification badge counts.
type BadgeCounter interface {
	Count(ctx context.Context, userID int64) (int, error)
	Reset(ctx context.Context, userID int64) error
}

// SettingsStore reads and writes per-user notification preferences.
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (*domain.RecipientSettings, error)
	Upsert(ctx context.Context, s *domain.RecipientSettings) error
}

// DeviceStore manages device token rows.
type DeviceStore interface {
	Register(ctx context.Context, userID int64, dev domain.DeviceRegistration) error
	Deregister(ctx context.Context, userID int64, token string) (string, error)
}

// EndpointProvisioner creates and retires provider-side push endpoints.
// Browser subscriptions need no provider endpoint and bypass it.
type EndpointProvisioner interface {
	CreateEndpoint(ctx context.Context, platform domain.Platform, token string) (string, error)
	DeleteEndpoint(ctx context.Context, targetARN string) error
}

// RecordMarker acknowledges a delivered notification record.
type RecordMarker interface {
	MarkProcessed(ctx context.Context, id string) error
}

// Server holds the API handler dependencies.
type Server struct {
	badges    BadgeCounter
	settings  SettingsStore
	devices   DeviceStore
	endpoints EndpointProvisioner
	records   RecordMarker
}

func NewServer(badges BadgeCounter, settings SettingsStore, devices DeviceStore, endpoints EndpointProvisioner, records RecordMarker) *Server {
	return &Server{
		badges:    badges,
		settings:  settings,
		devices:   devices,
		endpoints: endpoints,
		records:   records,
	}
}

// RegisterRoutes mounts the authenticated notification API on the router
// group. Health and metrics are mounted separately, outside auth.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	n := rg.Group("/notifications")
	n.GET("/badge", s.GetBadge)
	n.POST("/badge/clear", s.ClearBadge)
	n.GET("/settings", s.GetSettings)
	n.POST("/settings", s.UpdateSettings)
	n.POST("/device", s.RegisterDevice)
	n.POST("/device/deregister", s.DeregisterDevice)
	n.POST("/:id/processed", s.MarkProcessed)
}
