// Package strategy renders notification records into per-recipient messages.
//
// One render function per notification type; the set is closed and a record
// with an unknown type is refused. Cross-type rules (self-suppression, the
// deep-link dedupe id, deactivated initiators) live in the registry so the
// per-type functions stay pure message grammar.
package strategy

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
)

// renderContext is the read-only input to one render call.
type renderContext struct {
	rec         *domain.NotificationRecord
	recipientID int64
	entities    *domain.EntitySet
	challenges  *ChallengeCatalog
}

// initiator returns the primary acting user's summary.
func (rc renderContext) initiator() (domain.UserSummary, error) {
	id := rc.rec.Initiator()
	if id == 0 {
		return domain.UserSummary{}, missingEntity("record %s has no acting user", rc.rec.ID)
	}
	user, ok := rc.entities.User(id)
	if !ok {
		return domain.UserSummary{}, missingEntity("user %d not found", id)
	}
	return user, nil
}

// entity returns the record's primary entity summary.
func (rc renderContext) entity() (domain.EntitySummary, error) {
	p := rc.rec.Payload
	e, ok := rc.entities.Entity(p.EntityType, p.EntityID)
	if !ok {
		return domain.EntitySummary{}, missingEntity("%s %d not found", p.EntityType, p.EntityID)
	}
	return e, nil
}

func missingEntity(format string, args ...any) *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodeMissingEntity, fmt.Sprintf(format, args...))
}

// renderFunc produces the push/browser message for one recipient. The email
// summary reuses the body line.
type renderFunc func(rc renderContext) (domain.RenderedMessage, error)

// Result is the per-recipient output of resolving one record.
type Result struct {
	Messages map[int64]domain.RenderedMessage
	Emails   map[int64]domain.EmailViewModel
}

// Registry holds the closed set of render functions.
type Registry struct {
	handlers   map[domain.NotificationType]renderFunc
	challenges *ChallengeCatalog
}

// NewRegistry builds the registry with every supported type registered.
func NewRegistry() (*Registry, error) {
	catalog, err := loadChallengeCatalog()
	if err != nil {
		return nil, err
	}
	r := &Registry{
		handlers:   make(map[domain.NotificationType]renderFunc),
		challenges: catalog,
	}
	r.registerEngagement()
	r.registerMilestones()
	r.registerCreations()
	r.registerPayments()
	r.registerSocial()
	r.registerComments()
	r.registerManagement()
	return r, nil
}

func (r *Registry) register(t domain.NotificationType, fn renderFunc) {
	r.handlers[t] = fn
}

// Supports reports whether the registry knows the type.
func (r *Registry) Supports(t domain.NotificationType) bool {
	_, ok := r.handlers[t]
	return ok
}

// Resolve renders a record for every eligible recipient. Recipients are
// dropped silently when self-notified, deactivated, or without any enabled
// channel; a recipient whose entities cannot be resolved is dropped with a
// log line. The record-level error cases are an unknown type and a batch
// where every recipient failed on missing entities.
func (r *Registry) Resolve(
	rec *domain.NotificationRecord,
	entities *domain.EntitySet,
	settingsByRecipient map[int64]*domain.RecipientSettings,
) (*Result, error) {
	handler, ok := r.handlers[rec.Type]
	if !ok {
		return nil, apperrors.BadRequest(apperrors.CodeUnknownType,
			fmt.Sprintf("unknown notification type %q", rec.Type))
	}

	if initiator, ok := entities.User(rec.Initiator()); ok && initiator.IsDeactivated {
		return &Result{}, nil
	}

	result := &Result{
		Messages: make(map[int64]domain.RenderedMessage),
		Emails:   make(map[int64]domain.EmailViewModel),
	}
	var attempted, failed int
	var lastErr error

	for _, recipientID := range rec.RecipientUserIDs {
		if recipientID == rec.Initiator() {
			continue
		}
		s := settingsByRecipient[recipientID]
		if s == nil || s.IsDeactivated {
			continue
		}
		if !s.PushEnabled(rec.Type) && !s.BrowserEnabled(rec.Type) && !s.EmailEnabled() {
			continue
		}

		attempted++
		msg, err := handler(renderContext{
			rec:         rec,
			recipientID: recipientID,
			entities:    entities,
			challenges:  r.challenges,
		})
		if err != nil {
			failed++
			lastErr = err
			logger.Warn("Recipient dropped from notification",
				zap.String("record_id", rec.ID),
				zap.String("type", string(rec.Type)),
				zap.Int64("recipient_id", recipientID),
				zap.Error(err),
			)
			continue
		}

		if msg.DeepLink == nil {
			msg.DeepLink = make(map[string]string, 2)
		}
		// Dedupe key: clients collapse pushes carrying the same id.
		msg.DeepLink["id"] = rec.GroupID
		msg.DeepLink["type"] = string(rec.Type)

		result.Messages[recipientID] = msg
		result.Emails[recipientID] = domain.EmailViewModel{
			Type:    rec.Type,
			Summary: msg.Body,
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, apperrors.Wrap(lastErr, apperrors.CodeMissingEntity,
			"no recipient could be rendered", http.StatusNotFound)
	}
	return result, nil
}
