package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerCreations wires upload announcements and the remix family.
func (r *Registry) registerCreations() {
	r.register(domain.TypeCreate, renderCreate)
	r.register(domain.TypeRemix, renderRemix)
	r.register(domain.TypeCosign, renderCosign)
}

// renderCreate announces a release to followers. Grouped track uploads carry
// the count on the entity and pluralize.
func renderCreate(rc renderContext) (domain.RenderedMessage, error) {
	artist, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}

	title := fmt.Sprintf("New Release from %s", artist.Name)
	if entity.Type == domain.EntityTrack && entity.Count > 1 {
		return domain.RenderedMessage{
			Title: title,
			Body:  fmt.Sprintf("%s released %d new tracks", artist.Name, entity.Count),
		}, nil
	}
	return domain.RenderedMessage{
		Title: title,
		Body: fmt.Sprintf("%s released a new %s %s",
			artist.Name, entityNoun(entity.Type), entity.Name),
	}, nil
}

func renderRemix(rc renderContext) (domain.RenderedMessage, error) {
	remixer, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	remix, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	parent, ok := rc.entities.Entity(domain.EntityTrack, rc.rec.Payload.ParentTrackID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("parent track %d not found", rc.rec.Payload.ParentTrackID)
	}
	return domain.RenderedMessage{
		Title: "New Remix of Your Track",
		Body: fmt.Sprintf("New remix of your track %s: %s uploaded %s",
			parent.Name, remixer.Name, remix.Name),
	}, nil
}

func renderCosign(rc renderContext) (domain.RenderedMessage, error) {
	artist, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	remix, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Co-sign! ⭐",
		Body:  fmt.Sprintf("%s Co-signed your Remix of %s", artist.Name, remix.Name),
	}, nil
}
