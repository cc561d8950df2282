package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerMilestones wires achievement announcements: listen/favorite
// thresholds, trending placements, and tastemaker reposts.
func (r *Registry) registerMilestones() {
	r.register(domain.TypeMilestone, renderMilestone)
	r.register(domain.TypeTrending, renderTrending("Track", "Trending"))
	r.register(domain.TypeTrendingPlaylist, renderTrending("Playlist", "Trending"))
	r.register(domain.TypeTrendingUnderground, renderTrending("Track", "Underground Trending"))
	r.register(domain.TypeTastemaker, renderTastemaker)
}

// renderMilestone handles both entity milestones ("your track X reached over
// 1,000 plays") and the follower milestone, which has no entity.
func renderMilestone(rc renderContext) (domain.RenderedMessage, error) {
	p := rc.rec.Payload
	value := formatCount(p.Threshold)

	if p.EntityID == 0 {
		return domain.RenderedMessage{
			Title: "Congratulations! 🎉",
			Body:  fmt.Sprintf("You have reached over %s %ss", value, p.Achievement),
		}, nil
	}

	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "Congratulations! 🎉",
		Body: fmt.Sprintf("Your %s %s has reached over %s %ss",
			entityNoun(entity.Type), entity.Name, value, p.Achievement),
	}, nil
}

func renderTrending(noun, chart string) renderFunc {
	return func(rc renderContext) (domain.RenderedMessage, error) {
		entity, err := rc.entity()
		if err != nil {
			return domain.RenderedMessage{}, err
		}
		return domain.RenderedMessage{
			Title: fmt.Sprintf("%s Trending! 📈", noun),
			Body: fmt.Sprintf("Your %s %s is %s on %s Right Now!",
				noun, entity.Name, ordinal(rc.rec.Payload.Rank), chart),
		}, nil
	}
}

func renderTastemaker(rc renderContext) (domain.RenderedMessage, error) {
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "You're a Tastemaker!",
		Body:  fmt.Sprintf("%s is now trending thanks to you! Great work 🙌", entity.Name),
	}, nil
}
