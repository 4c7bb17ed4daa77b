package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const trackColumns = `spotify_id, name, artist_id, artist_name, album, duration_ms, popularity, genres`

// UpsertTrack inserts or refreshes a cached track and marks it playable.
//
// Genres already resolved by the backfill crawler are kept when the incoming track carries none.
func (s *Store) UpsertTrack(ctx context.Context, t models.Track) error {
	if !shared.IsCatalogID(t.ID) {
		return fmt.Errorf("%w: track %q", shared.ErrInvalidCatalogID, t.ID)
	}

	var genres any
	if len(t.Genres) > 0 {
		genres = encodeGenres(t.Genres)
	}

	now := s.timestamp()
	_, err := s.exec(ctx, "upsert track", `
		INSERT INTO tracks (spotify_id, name, artist_id, artist_name, album, duration_ms, popularity, genres, playable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET
			name = excluded.name,
			artist_id = excluded.artist_id,
			artist_name = excluded.artist_name,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			popularity = excluded.popularity,
			genres = COALESCE(excluded.genres, tracks.genres),
			playable = 1,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.ArtistID, t.ArtistName, t.Album, t.DurationMS, t.Popularity, genres, now, now)
	return err
}

// GetTrack retrieves a cached track. Returns an error wrapping [shared.ErrNotFound] when absent.
func (s *Store) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE spotify_id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get track: %v", shared.ErrPersistence, err)
	}
	return t, nil
}

// IsPlayable reports the playable flag of a cached track; unknown tracks are reported playable.
func (s *Store) IsPlayable(ctx context.Context, id string) (bool, error) {
	var playable int
	err := s.db.QueryRowContext(ctx, `SELECT playable FROM tracks WHERE spotify_id = ?`, id).Scan(&playable)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read playable flag: %v", shared.ErrPersistence, err)
	}
	return playable == 1, nil
}

// MarkUnplayable flags a track so it is no longer offered by random sampling.
// Creates a placeholder row when the track is not cached yet.
func (s *Store) MarkUnplayable(ctx context.Context, id string) error {
	now := s.timestamp()
	_, err := s.exec(ctx, "mark unplayable", `
		INSERT INTO tracks (spotify_id, playable, created_at, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(spotify_id) DO UPDATE SET playable = 0, updated_at = excluded.updated_at
	`, id, now, now)
	return err
}

// RandomTracks samples up to n playable cached tracks uniformly, skipping the excluded IDs.
func (s *Store) RandomTracks(ctx context.Context, n int, exclude map[string]struct{}) ([]models.Track, error) {
	if n <= 0 {
		return nil, nil
	}

	clause, args := excludeClause("spotify_id", exclude)
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE playable = 1 AND name <> ''` + clause + ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, n)

	var out []models.Track
	err := s.query(ctx, "random tracks", func(rows *sql.Rows) error {
		t, err := scanTrack(rows)
		if err != nil {
			return err
		}
		out = append(out, *t)
		return nil
	}, query, args...)
	return out, err
}

// TracksMissingGenres samples up to n tracks whose genres are unresolved and that have been attempted fewer than maxAttempts times.
func (s *Store) TracksMissingGenres(ctx context.Context, n, maxAttempts int) ([]models.Track, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `SELECT ` + trackColumns + ` FROM tracks
		WHERE genres IS NULL AND genre_attempts < ? AND artist_id <> ''
		ORDER BY RANDOM() LIMIT ?`

	var out []models.Track
	err := s.query(ctx, "tracks missing genres", func(rows *sql.Rows) error {
		t, err := scanTrack(rows)
		if err != nil {
			return err
		}
		out = append(out, *t)
		return nil
	}, query, maxAttempts, n)
	return out, err
}

// SetTrackGenres stores resolved genres for a track.
func (s *Store) SetTrackGenres(ctx context.Context, id string, genres []string) error {
	_, err := s.exec(ctx, "set track genres",
		`UPDATE tracks SET genres = ?, genre_attempts = genre_attempts + 1, updated_at = ? WHERE spotify_id = ?`,
		encodeGenres(genres), s.timestamp(), id)
	return err
}

// RecordGenreFailure counts one unsuccessful genre lookup for a track.
func (s *Store) RecordGenreFailure(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "record genre failure",
		`UPDATE tracks SET genre_attempts = genre_attempts + 1, updated_at = ? WHERE spotify_id = ?`,
		s.timestamp(), id)
	return err
}

// UpsertTopTracks replaces an artist's cached top tracks, upserting each track.
func (s *Store) UpsertTopTracks(ctx context.Context, artistID string, tracks []models.Track) error {
	if !shared.IsCatalogID(artistID) {
		return fmt.Errorf("%w: artist %q", shared.ErrInvalidCatalogID, artistID)
	}

	for _, t := range tracks {
		if err := s.UpsertTrack(ctx, t); err != nil {
			return err
		}
	}

	if _, err := s.exec(ctx, "clear top tracks", `DELETE FROM artist_top_tracks WHERE artist_id = ?`, artistID); err != nil {
		return err
	}

	now := s.timestamp()
	for rank, t := range tracks {
		if _, err := s.exec(ctx, "insert top track",
			`INSERT OR REPLACE INTO artist_top_tracks (artist_id, track_id, rank, updated_at) VALUES (?, ?, ?, ?)`,
			artistID, t.ID, rank, now); err != nil {
			return err
		}
	}
	return nil
}

// TopTracks returns the cached top tracks of an artist in rank order, skipping unplayable ones.
func (s *Store) TopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	query := `SELECT t.spotify_id, t.name, t.artist_id, t.artist_name, t.album, t.duration_ms, t.popularity, t.genres
		FROM artist_top_tracks att
		JOIN tracks t ON t.spotify_id = att.track_id
		WHERE att.artist_id = ? AND t.playable = 1
		ORDER BY att.rank ASC`

	var out []models.Track
	err := s.query(ctx, "top tracks", func(rows *sql.Rows) error {
		t, err := scanTrack(rows)
		if err != nil {
			return err
		}
		out = append(out, *t)
		return nil
	}, query, artistID)
	return out, err
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*models.Track, error) {
	var (
		t      models.Track
		genres sql.NullString
	)
	if err := scanner.Scan(&t.ID, &t.Name, &t.ArtistID, &t.ArtistName, &t.Album, &t.DurationMS, &t.Popularity, &genres); err != nil {
		return nil, err
	}
	t.Genres = decodeGenres(genres)
	return &t, nil
}
