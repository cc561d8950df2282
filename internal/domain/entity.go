package domain

import "fmt"

// EntityType distinguishes the content entities a notification can reference.
type EntityType string

const (
	EntityTrack    EntityType = "track"
	EntityPlaylist EntityType = "playlist"
	EntityAlbum    EntityType = "album"
	EntityUser     EntityType = "user"
)

// EntityRef is the lookup key for an enriched entity.
type EntityRef struct {
	Type EntityType
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// EntitySummary is the denormalized projection of a track, playlist or album
// that message rendering needs. Never persisted; request-scoped only.
type EntitySummary struct {
	Type     EntityType
	ID       int64
	Name     string
	ImageURL string
	OwnerID  int64

	// Count is the number of coalesced items, used by the create strategy
	// ("released N new tracks").
	Count int
}

// UserSummary is the denormalized projection of a user.
type UserSummary struct {
	ID            int64
	Name          string
	Handle        string
	ImageURL      string
	IsDeactivated bool
}

// EntitySet is the request-scoped mapping built by the entity resolver and
// consumed read-only by strategies.
type EntitySet struct {
	Entities map[EntityRef]EntitySummary
	Users    map[int64]UserSummary
}

// NewEntitySet returns an empty set ready for population.
func NewEntitySet() *EntitySet {
	return &EntitySet{
		Entities: make(map[EntityRef]EntitySummary),
		Users:    make(map[int64]UserSummary),
	}
}

// Entity looks up a non-user entity.
func (s *EntitySet) Entity(t EntityType, id int64) (EntitySummary, bool) {
	e, ok := s.Entities[EntityRef{Type: t, ID: id}]
	return e, ok
}

// User looks up a user projection.
func (s *EntitySet) User(id int64) (UserSummary, bool) {
	u, ok := s.Users[id]
	return u, ok
}
