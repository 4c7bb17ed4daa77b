package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const artistColumns = `spotify_id, name, genres, popularity, follower_count`

// UpsertArtist inserts or refreshes a cached artist profile.
//
// Popularity and follower count keep their cached values when the incoming profile omits them.
func (s *Store) UpsertArtist(ctx context.Context, p models.ArtistProfile) error {
	if !shared.IsCatalogID(p.SpotifyID) {
		return fmt.Errorf("%w: artist %q", shared.ErrInvalidCatalogID, p.SpotifyID)
	}

	now := s.timestamp()
	_, err := s.exec(ctx, "upsert artist", `
		INSERT INTO artists (spotify_id, name, genres, popularity, follower_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN artists.name ELSE excluded.name END,
			genres = excluded.genres,
			popularity = COALESCE(excluded.popularity, artists.popularity),
			follower_count = COALESCE(excluded.follower_count, artists.follower_count),
			updated_at = excluded.updated_at
	`, p.SpotifyID, p.Name, encodeGenres(p.Genres), nullableInt(p.Popularity), nullableInt(p.FollowerCount), now, now)
	return err
}

// UpsertArtists upserts every profile, stopping at the first failure.
func (s *Store) UpsertArtists(ctx context.Context, profiles []models.ArtistProfile) error {
	for _, p := range profiles {
		if err := s.UpsertArtist(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// GetArtist retrieves a cached profile. Returns an error wrapping [shared.ErrNotFound] when absent.
func (s *Store) GetArtist(ctx context.Context, id string) (*models.ArtistProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE spotify_id = ?`, id)
	p, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get artist: %v", shared.ErrPersistence, err)
	}
	return p, nil
}

// GetArtists returns the cached profiles among ids, keyed by catalog ID.
func (s *Store) GetArtists(ctx context.Context, ids []string) (map[string]models.ArtistProfile, error) {
	out := make(map[string]models.ArtistProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + artistColumns + ` FROM artists WHERE spotify_id IN (` + makePlaceholders(len(ids)) + `)`
	err := s.query(ctx, "get artists", func(rows *sql.Rows) error {
		p, err := scanArtist(rows)
		if err != nil {
			return err
		}
		out[p.SpotifyID] = *p
		return nil
	}, query, stringArgs(ids)...)
	return out, err
}

// RandomArtists samples up to n cached artists uniformly, skipping the excluded IDs.
func (s *Store) RandomArtists(ctx context.Context, n int, exclude map[string]struct{}) ([]models.ArtistProfile, error) {
	if n <= 0 {
		return nil, nil
	}

	clause, args := excludeClause("spotify_id", exclude)
	query := `SELECT ` + artistColumns + ` FROM artists WHERE 1 = 1` + clause + ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, n)

	var out []models.ArtistProfile
	err := s.query(ctx, "random artists", func(rows *sql.Rows) error {
		p, err := scanArtist(rows)
		if err != nil {
			return err
		}
		out = append(out, *p)
		return nil
	}, query, args...)
	return out, err
}

// CountArtists returns the number of cached artists.
func (s *Store) CountArtists(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count artists: %v", shared.ErrPersistence, err)
	}
	return n, nil
}

func scanArtist(scanner interface{ Scan(dest ...any) error }) (*models.ArtistProfile, error) {
	var (
		p          models.ArtistProfile
		genres     sql.NullString
		popularity sql.NullInt64
		followers  sql.NullInt64
	)
	if err := scanner.Scan(&p.SpotifyID, &p.Name, &genres, &popularity, &followers); err != nil {
		return nil, err
	}
	p.Genres = decodeGenres(genres)
	if p.Genres == nil {
		p.Genres = []string{}
	}
	p.Popularity = intPtr(popularity)
	p.FollowerCount = intPtr(followers)
	return &p, nil
}
