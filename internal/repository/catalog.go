package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"waveline.io/courier/internal/domain"
)

// CatalogRepository reads the track, playlist, and user projections that
// upstream ingestion keeps in sync. Courier never writes these tables.
type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: pool}
}

// UsersByID returns user summaries for the given ids. Unknown ids are absent.
func (r *CatalogRepository) UsersByID(ctx context.Context, ids []int64) (map[int64]domain.UserSummary, error) {
	if len(ids) == 0 {
		return map[int64]domain.UserSummary{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, name, handle, image_url, is_deactivated
		FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.UserSummary, len(ids))
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Handle, &u.ImageURL, &u.IsDeactivated); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// TracksByID returns track summaries keyed by id.
func (r *CatalogRepository) TracksByID(ctx context.Context, ids []int64) (map[int64]domain.EntitySummary, error) {
	if len(ids) == 0 {
		return map[int64]domain.EntitySummary{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, title, image_url
		FROM tracks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.EntitySummary, len(ids))
	for rows.Next() {
		s := domain.EntitySummary{Type: domain.EntityTrack}
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.ImageURL); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// PlaylistsByID returns playlist and album summaries keyed by id. The stored
// is_album flag decides which entity type each row reports.
func (r *CatalogRepository) PlaylistsByID(ctx context.Context, ids []int64) (map[int64]domain.EntitySummary, error) {
	if len(ids) == 0 {
		return map[int64]domain.EntitySummary{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, image_url, is_album, track_count
		FROM playlists WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.EntitySummary, len(ids))
	for rows.Next() {
		var (
			s       domain.EntitySummary
			isAlbum bool
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.ImageURL, &isAlbum, &s.Count); err != nil {
			return nil, err
		}
		s.Type = domain.EntityPlaylist
		if isAlbum {
			s.Type = domain.EntityAlbum
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}
