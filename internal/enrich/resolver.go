// Package enrich resolves the entities a batch of notification records
// references into an in-memory set for message rendering.
package enrich

import (
	"context"
	"sync"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/pkg/worker"
	"waveline.io/courier/internal/repository"
)

// Resolver batch-loads catalog projections for notification records.
type Resolver struct {
	catalog *repository.CatalogRepository
	pools   *worker.Pools
}

func NewResolver(catalog *repository.CatalogRepository, pools *worker.Pools) *Resolver {
	return &Resolver{catalog: catalog, pools: pools}
}

// Resolve gathers every entity and user a batch references and loads them in
// one query per kind. Ids missing from the catalog are simply absent from the
// set; strategies treat absence as a missing-entity failure for the record.
func (r *Resolver) Resolve(ctx context.Context, records []*domain.NotificationRecord) (*domain.EntitySet, error) {
	trackIDs := make(map[int64]struct{})
	playlistIDs := make(map[int64]struct{})
	userIDs := make(map[int64]struct{})

	for _, rec := range records {
		for _, id := range rec.Payload.UserIDs {
			userIDs[id] = struct{}{}
		}
		for _, id := range rec.RecipientUserIDs {
			userIDs[id] = struct{}{}
		}
		if rec.Payload.EntityOwnerID != 0 {
			userIDs[rec.Payload.EntityOwnerID] = struct{}{}
		}
		if rec.Payload.PlaylistOwnerID != 0 {
			userIDs[rec.Payload.PlaylistOwnerID] = struct{}{}
		}
		if rec.Payload.ReceiverUserID != 0 {
			userIDs[rec.Payload.ReceiverUserID] = struct{}{}
		}

		if rec.Payload.EntityID != 0 {
			switch rec.Payload.EntityType {
			case domain.EntityTrack:
				trackIDs[rec.Payload.EntityID] = struct{}{}
			case domain.EntityPlaylist, domain.EntityAlbum:
				playlistIDs[rec.Payload.EntityID] = struct{}{}
			case domain.EntityUser:
				userIDs[rec.Payload.EntityID] = struct{}{}
			}
		}
		if rec.Payload.PlaylistID != 0 {
			playlistIDs[rec.Payload.PlaylistID] = struct{}{}
		}
		if rec.Payload.ParentTrackID != 0 {
			trackIDs[rec.Payload.ParentTrackID] = struct{}{}
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		set      = domain.NewEntitySet()
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(3)
	tasks := []worker.Task{
		func(ctx context.Context) {
			defer wg.Done()
			tracks, err := r.catalog.TracksByID(ctx, keys(trackIDs))
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			for id, t := range tracks {
				set.Entities[domain.EntityRef{Type: domain.EntityTrack, ID: id}] = t
			}
			mu.Unlock()
		},
		func(ctx context.Context) {
			defer wg.Done()
			playlists, err := r.catalog.PlaylistsByID(ctx, keys(playlistIDs))
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			for id, p := range playlists {
				// Albums are stored in the playlists projection; index under
				// both types so either payload spelling resolves.
				set.Entities[domain.EntityRef{Type: domain.EntityPlaylist, ID: id}] = p
				set.Entities[domain.EntityRef{Type: domain.EntityAlbum, ID: id}] = p
			}
			mu.Unlock()
		},
		func(ctx context.Context) {
			defer wg.Done()
			users, err := r.catalog.UsersByID(ctx, keys(userIDs))
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			for id, u := range users {
				set.Users[id] = u
			}
			mu.Unlock()
		},
	}
	for _, task := range tasks {
		if err := r.pools.General.Submit(ctx, task); err != nil {
			wg.Done()
			fail(err)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return set, nil
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
