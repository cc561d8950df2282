package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerEngagement wires the reaction-to-content family: favorites,
// reposts, and follows. All of them support "X and N others" aggregation
// over the payload's actor list.
func (r *Registry) registerEngagement() {
	r.register(domain.TypeFavorite, renderSave)
	r.register(domain.TypeSave, renderSave)
	r.register(domain.TypeRepost, renderRepost)
	r.register(domain.TypeRepostOfRepost, renderRepostOfRepost)
	r.register(domain.TypeSaveOfRepost, renderSaveOfRepost)
	r.register(domain.TypeFollow, renderFollow)
}

func renderSave(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Favorite",
		Body: fmt.Sprintf("%s favorited your %s %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)),
			entityNoun(entity.Type), entity.Name),
	}, nil
}

func renderRepost(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Repost",
		Body: fmt.Sprintf("%s reposted your %s %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)),
			entityNoun(entity.Type), entity.Name),
	}, nil
}

func renderRepostOfRepost(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Repost",
		Body: fmt.Sprintf("%s reposted your repost of %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)), entity.Name),
	}, nil
}

func renderSaveOfRepost(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Favorite",
		Body: fmt.Sprintf("%s favorited your repost of %s",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs)), entity.Name),
	}, nil
}

func renderFollow(rc renderContext) (domain.RenderedMessage, error) {
	actor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Follower",
		Body: fmt.Sprintf("%s followed you",
			actorPhrase(actor.Name, len(rc.rec.Payload.UserIDs))),
	}, nil
}
