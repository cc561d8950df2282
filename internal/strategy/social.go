package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerSocial wires tips-adjacent social signals and direct messages.
func (r *Registry) registerSocial() {
	r.register(domain.TypeReaction, renderReaction)
	r.register(domain.TypeSupporterRankUp, renderSupporterRankUp)
	r.register(domain.TypeSupportingRankUp, renderSupportingRankUp)
	r.register(domain.TypeMessage, renderMessage)
	r.register(domain.TypeMessageReaction, renderMessageReaction)
}

func renderReaction(rc renderContext) (domain.RenderedMessage, error) {
	reactor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: fmt.Sprintf("%s reacted", reactor.Name),
		Body: fmt.Sprintf("%s reacted to your tip of %s $WAVE",
			reactor.Name, rc.rec.Payload.Amount),
	}, nil
}

func renderSupporterRankUp(rc renderContext) (domain.RenderedMessage, error) {
	supporter, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	rank := rc.rec.Payload.Rank
	return domain.RenderedMessage{
		Title: fmt.Sprintf("#%d Top Supporter", rank),
		Body:  fmt.Sprintf("%s became your #%d Top Supporter!", supporter.Name, rank),
	}, nil
}

func renderSupportingRankUp(rc renderContext) (domain.RenderedMessage, error) {
	supported, ok := rc.entities.User(rc.rec.Payload.EntityOwnerID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("supported user %d not found", rc.rec.Payload.EntityOwnerID)
	}
	rank := rc.rec.Payload.Rank
	return domain.RenderedMessage{
		Title: fmt.Sprintf("#%d Top Supporter", rank),
		Body:  fmt.Sprintf("You're now %s's #%d Top Supporter!", supported.Name, rank),
	}, nil
}

func renderMessage(rc renderContext) (domain.RenderedMessage, error) {
	sender, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Message",
		Body:  fmt.Sprintf("%s sent you a message", sender.Name),
	}, nil
}

func renderMessageReaction(rc renderContext) (domain.RenderedMessage, error) {
	reactor, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Reaction",
		Body:  fmt.Sprintf("%s reacted to your message", reactor.Name),
	}, nil
}
