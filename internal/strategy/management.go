package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerManagement wires account management requests and playlist adds.
func (r *Registry) registerManagement() {
	r.register(domain.TypeRequestManager, renderRequestManager)
	r.register(domain.TypeApproveManagerReq, renderApproveManagerRequest)
	r.register(domain.TypeTrackAddedToPlaylist, renderTrackAddedToPlaylist)
}

func renderRequestManager(rc renderContext) (domain.RenderedMessage, error) {
	inviter, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "Account Management Request",
		Body:  fmt.Sprintf("%s has invited you to manage their account", inviter.Name),
	}, nil
}

func renderApproveManagerRequest(rc renderContext) (domain.RenderedMessage, error) {
	manager, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "New Account Manager",
		Body:  fmt.Sprintf("%s has been added as a manager on your account", manager.Name),
	}, nil
}

func renderTrackAddedToPlaylist(rc renderContext) (domain.RenderedMessage, error) {
	track, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	playlist, ok := rc.entities.Entity(domain.EntityPlaylist, rc.rec.Payload.PlaylistID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("playlist %d not found", rc.rec.Payload.PlaylistID)
	}
	curator, ok := rc.entities.User(rc.rec.Payload.PlaylistOwnerID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("playlist owner %d not found", rc.rec.Payload.PlaylistOwnerID)
	}
	return domain.RenderedMessage{
		Title: "Your Track Got on a Playlist! 💿",
		Body: fmt.Sprintf("%s added %s to their playlist %s",
			curator.Name, track.Name, playlist.Name),
	}, nil
}
