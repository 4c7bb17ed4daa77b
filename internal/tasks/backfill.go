package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

// DefaultMaxGenreAttempts bounds how often a track is sampled when the configuration leaves it unset.
const DefaultMaxGenreAttempts = 3

// GenreBackfillCrawler fills in missing track genres a few tracks at a time.
//
// It keeps no cursor: every batch samples the store's "missing genres" rows again.
// Its counters only grow and are shared by every tick of the process.
type GenreBackfillCrawler struct {
	store       BackfillStore
	maxAttempts int
	recorder    Recorder
	logger      *log.Logger

	mu      sync.Mutex
	metrics models.BackfillMetrics
}

// NewGenreBackfillCrawler creates a crawler. recorder and logger may be nil.
func NewGenreBackfillCrawler(store BackfillStore, maxAttempts int, recorder Recorder, logger *log.Logger) *GenreBackfillCrawler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxGenreAttempts
	}
	return &GenreBackfillCrawler{
		store:       store,
		maxAttempts: maxAttempts,
		recorder:    recorder,
		logger:      shared.WithLogger(logger, "crawler", "genres"),
	}
}

// Metrics returns a copy of the counters.
func (c *GenreBackfillCrawler) Metrics() models.BackfillMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *GenreBackfillCrawler) update(fn func(m *models.BackfillMetrics)) {
	c.mu.Lock()
	fn(&c.metrics)
	c.mu.Unlock()
}

// ProcessBatch resolves genres for up to count tracks and returns how many were attempted.
//
// Genres come from the artist's cached profile first, then from the catalog when one is given.
// Tracks with no source available are left untouched and do not use up an attempt.
// budget reports the time left to the caller; the batch stops once it runs out. A nil budget never runs out.
func (c *GenreBackfillCrawler) ProcessBatch(ctx context.Context, count int, catalog services.CatalogClient, budget func() time.Duration) (int, error) {
	tracks, err := c.store.TracksMissingGenres(ctx, count, c.maxAttempts)
	if err != nil {
		return 0, err
	}
	c.update(func(m *models.BackfillMetrics) { m.Batches++ })

	artists := make(map[string][]string)
	processed, successes, failures := 0, 0, 0

	for i, track := range tracks {
		if ctx.Err() != nil {
			break
		}
		if budget != nil && budget() <= 0 {
			c.logger.Warn("genre batch cut short",
				"error", shared.ErrDeadlineReached, "left", len(tracks)-i)
			break
		}

		genres, ok := artists[track.ArtistID]
		if !ok {
			genres, ok = c.lookup(ctx, catalog, track.ArtistID)
			if !ok {
				continue
			}
			artists[track.ArtistID] = genres
		}
		processed++

		if len(genres) == 0 {
			if err := c.store.RecordGenreFailure(ctx, track.ID); err != nil {
				c.logger.Error("failed to record genre failure", "track", track.ID, "error", err)
				continue
			}
			failures++
			c.update(func(m *models.BackfillMetrics) { m.TrackFailures++ })
			continue
		}

		if err := c.store.SetTrackGenres(ctx, track.ID, genres); err != nil {
			c.logger.Error("failed to store track genres", "track", track.ID, "error", err)
			continue
		}
		successes++
		c.update(func(m *models.BackfillMetrics) { m.TrackSuccesses++ })
	}

	if c.recorder != nil {
		c.recorder.RecordBackfill(successes, failures)
	}
	c.logger.Debug("genre batch done", "sampled", len(tracks), "processed", processed, "resolved", successes, "failed", failures)
	return processed, nil
}

// lookup returns an artist's genres and whether any source answered.
// An empty answer is still an answer: the artist has no genres.
func (c *GenreBackfillCrawler) lookup(ctx context.Context, catalog services.CatalogClient, artistID string) ([]string, bool) {
	cached, err := c.store.GetArtist(ctx, artistID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		c.logger.Warn("artist cache unavailable", "artist", artistID, "error", err)
	}
	if cached != nil && len(cached.Genres) > 0 {
		c.update(func(m *models.BackfillMetrics) { m.CacheHits++ })
		return cached.Genres, true
	}

	if catalog == nil || !shared.IsCatalogID(artistID) {
		if cached != nil {
			return nil, true
		}
		return nil, false
	}

	c.update(func(m *models.BackfillMetrics) { m.ArtistFetches++ })
	profile, err := catalog.Artist(ctx, artistID)
	if err != nil {
		c.logger.Warn("artist lookup failed", "artist", artistID, "error", err)
		return nil, true
	}
	if err := c.store.UpsertArtist(ctx, *profile); err != nil {
		c.logger.Warn("failed to cache artist profile", "artist", artistID, "error", err)
	}
	return profile.Genres, true
}
