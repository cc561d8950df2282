package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerComments wires the comment family. All three share the possessive
// rule for the commented entity: its owner hears "your", a single actor
// commenting on their own entity reads "their", anyone else is named.
func (r *Registry) registerComments() {
	r.register(domain.TypeComment, renderComment)
	r.register(domain.TypeCommentThread, renderCommentThread)
	r.register(domain.TypeCommentMention, renderCommentMention)
}

func (rc renderContext) entityPossessive(entity domain.EntitySummary) (string, error) {
	owner, ok := rc.entities.User(entity.OwnerID)
	if !ok {
		return "", missingEntity("entity owner %d not found", entity.OwnerID)
	}
	actorID := int64(0)
	if len(rc.rec.Payload.UserIDs) == 1 {
		actorID = rc.rec.Payload.UserIDs[0]
	}
	return possessive(entity.OwnerID, rc.recipientID, actorID, owner.Name), nil
}

func renderComment(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	poss, err := rc.entityPossessive(entity)
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Comment",
		Body: fmt.Sprintf("%s commented on %s %s %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)),
			poss, entityNoun(entity.Type), entity.Name),
	}, nil
}

func renderCommentThread(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	poss, err := rc.entityPossessive(entity)
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Reply",
		Body: fmt.Sprintf("%s replied to your comment on %s %s %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)),
			poss, entityNoun(entity.Type), entity.Name),
	}, nil
}

func renderCommentMention(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	poss, err := rc.entityPossessive(entity)
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Mention",
		Body: fmt.Sprintf("%s tagged you in a comment on %s %s %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)),
			poss, entityNoun(entity.Type), entity.Name),
	}, nil
}
