package round

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/stats"
	"golang.org/x/sync/errgroup"
)

// Stage 2 defaults used when the configuration leaves a value unset.
const (
	DefaultMinCandidatePool = 20
	DefaultTopTrackPool     = 5
	DefaultFetchConcurrency = 8
)

// Stage2Request asks for a track pool built from a candidate artist set.
//
// Profiles may carry artist profiles already known from Stage 1 so they are not fetched again.
type Stage2Request struct {
	ArtistIDs      []string               `json:"artistIds"`
	PlayedTrackIDs []string               `json:"playedTrackIds,omitempty"`
	CurrentTrackID string                 `json:"currentTrackId,omitempty"`
	Profiles       []models.ArtistProfile `json:"profiles,omitempty"`
}

// Stage2Debug carries the counts of a Stage 2 run for observability.
type Stage2Debug struct {
	Artists         int            `json:"artists"`
	Organic         int            `json:"organic"`
	Embedding       int            `json:"embedding"`
	CachedTopTracks int            `json:"cachedTopTracks"`
	NoSelection     int            `json:"noSelection"`
	ProfilesReused  int            `json:"profilesReused"`
	ProfilesFetched int            `json:"profilesFetched"`
	ProfilesCached  int            `json:"profilesCached"`
	PoolFloor       int            `json:"poolFloor"`
	BelowFloor      bool           `json:"belowFloor"`
	APICalls        stats.Snapshot `json:"apiCalls"`
	DurationMS      int64          `json:"durationMs"`
}

// Stage2Result is the candidate pool of a round.
type Stage2Result struct {
	Seeds    []models.CandidateSeed          `json:"seeds"`
	Profiles map[string]models.ArtistProfile `json:"profiles"`
	Debug    Stage2Debug                     `json:"debug"`
}

// Assembler turns a candidate artist set into a de-duplicated track pool with a guaranteed minimum size.
type Assembler struct {
	pipeline
	minPool     int
	topN        int
	concurrency int
	intn        func(n int) int
	now         func() time.Time
}

// NewAssembler creates a Stage 2 assembler. observer and logger may be nil.
func NewAssembler(store Store, catalogs services.CatalogFactory, cfg shared.RoundConfig, observer Observer, logger *log.Logger) *Assembler {
	a := &Assembler{
		pipeline: pipeline{
			store:    store,
			catalogs: catalogs,
			observer: observer,
			logger:   shared.WithLogger(logger, "component", "stage2"),
		},
		minPool:     cfg.MinCandidatePool,
		topN:        cfg.TopTrackPool,
		concurrency: cfg.FetchConcurrency,
		intn:        rand.IntN,
		now:         time.Now,
	}
	if a.minPool <= 0 {
		a.minPool = DefaultMinCandidatePool
	}
	if a.topN <= 0 {
		a.topN = DefaultTopTrackPool
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultFetchConcurrency
	}
	return a
}

// topTracks is the fetch outcome for one candidate artist.
type topTracks struct {
	tracks []models.Track
	cached bool
}

// Assemble runs Stage 2.
//
// Every artist ID must be catalog-shaped; a malformed ID fails the request with [shared.ErrInvalidCatalogID] before any catalog call.
func (a *Assembler) Assemble(ctx context.Context, token string, req Stage2Request) (*Stage2Result, error) {
	start := a.now()

	artistIDs, err := normalizeArtistIDs(req.ArtistIDs)
	if err != nil {
		return nil, err
	}
	exclude := exclusionSet(req)

	catalog, tracker := a.begin(token)
	result := &Stage2Result{
		Profiles: make(map[string]models.ArtistProfile),
		Debug:    Stage2Debug{Artists: len(artistIDs), PoolFloor: a.minPool},
	}

	fetched := a.fetchTopTracks(ctx, catalog, artistIDs)

	selected := make(map[string]struct{})
	for i, artistID := range artistIDs {
		f := fetched[i]
		if f.cached {
			result.Debug.CachedTopTracks++
		}

		track, ok := a.pick(f.tracks, exclude, selected)
		if !ok {
			result.Debug.NoSelection++
			continue
		}
		selected[track.ID] = struct{}{}
		result.Seeds = append(result.Seeds, models.CandidateSeed{
			Track:        track,
			Source:       models.SourceTopTrack,
			SeedArtistID: artistID,
		})
	}
	result.Debug.Organic = len(result.Seeds)

	if need := a.minPool - len(result.Seeds); need > 0 {
		skip := make(map[string]struct{}, len(exclude)+len(selected))
		for id := range exclude {
			skip[id] = struct{}{}
		}
		for id := range selected {
			skip[id] = struct{}{}
		}

		fill, err := a.store.RandomTracks(ctx, need, skip)
		if err != nil {
			a.logger.Warn("pool top-up unavailable", "need", need, "error", err)
		}
		for _, t := range fill {
			if len(result.Seeds) >= a.minPool {
				break
			}
			if _, dup := skip[t.ID]; dup || !shared.IsCatalogID(t.ID) {
				continue
			}
			skip[t.ID] = struct{}{}
			result.Seeds = append(result.Seeds, models.CandidateSeed{
				Track:        t,
				Source:       models.SourceEmbedding,
				SeedArtistID: t.ArtistID,
			})
			result.Debug.Embedding++
		}
	}

	if len(result.Seeds) < a.minPool {
		result.Debug.BelowFloor = true
		a.logger.Warn("candidate pool below floor", "size", len(result.Seeds), "floor", a.minPool)
	}

	a.enrich(ctx, catalog, req.Profiles, result)

	result.Debug.APICalls = tracker.Snapshot()
	result.Debug.DurationMS = a.now().Sub(start).Milliseconds()
	a.recordPool("stage2", len(result.Seeds), map[string]int{
		string(models.SourceTopTrack):  result.Debug.Organic,
		string(models.SourceEmbedding): result.Debug.Embedding,
	})

	a.logger.Debug("stage2 assembled",
		"artists", len(artistIDs), "organic", result.Debug.Organic,
		"embedding", result.Debug.Embedding, "api_calls", result.Debug.APICalls.Total)
	return result, nil
}

// fetchTopTracks loads every artist's top tracks with bounded concurrency.
// Catalog failures fall back to the cached top tracks; fresh results are queued for write-back.
func (a *Assembler) fetchTopTracks(ctx context.Context, catalog services.CatalogClient, artistIDs []string) []topTracks {
	out := make([]topTracks, len(artistIDs))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, artistID := range artistIDs {
		g.Go(func() error {
			tracks, err := catalog.ArtistTopTracks(ctx, artistID)
			if err == nil {
				out[i] = topTracks{tracks: tracks}
				return nil
			}

			cached, cacheErr := a.store.TopTracks(ctx, artistID)
			if cacheErr != nil {
				a.logger.Warn("top tracks unavailable", "artist", artistID, "error", err, "cache_error", cacheErr)
				return nil
			}
			out[i] = topTracks{tracks: cached, cached: true}
			return nil
		})
	}
	_ = g.Wait()

	for i, artistID := range artistIDs {
		if !out[i].cached && len(out[i].tracks) > 0 {
			a.writeBack(ctx, models.ItemArtistTopTracks, artistID, models.TopTracks{ArtistID: artistID, Tracks: out[i].tracks})
		}
	}
	return out
}

// pick chooses one track uniformly from the artist's first topN eligible tracks.
// Excluded and already selected tracks are skipped before the window is taken, so they never shrink it.
func (a *Assembler) pick(tracks []models.Track, exclude, selected map[string]struct{}) (models.Track, bool) {
	eligible := make([]models.Track, 0, min(a.topN, len(tracks)))
	for _, t := range tracks {
		if len(eligible) == a.topN {
			break
		}
		if !shared.IsCatalogID(t.ID) {
			continue
		}
		if _, ok := exclude[t.ID]; ok {
			continue
		}
		if _, ok := selected[t.ID]; ok {
			continue
		}
		eligible = append(eligible, t)
	}
	if len(eligible) == 0 {
		return models.Track{}, false
	}
	return eligible[a.intn(len(eligible))], true
}

// enrich attaches an artist profile to every seed: reused from the request, then fetched in batches, then read from the cache.
func (a *Assembler) enrich(ctx context.Context, catalog services.CatalogClient, known []models.ArtistProfile, result *Stage2Result) {
	needed := make(map[string]struct{})
	var order []string
	for _, s := range result.Seeds {
		id := seedArtist(s)
		if _, ok := needed[id]; ok || !shared.IsCatalogID(id) {
			continue
		}
		needed[id] = struct{}{}
		order = append(order, id)
	}

	for _, p := range known {
		if _, ok := needed[p.SpotifyID]; ok {
			if _, have := result.Profiles[p.SpotifyID]; !have {
				result.Profiles[p.SpotifyID] = p
				result.Debug.ProfilesReused++
			}
		}
	}

	var missing []string
	for _, id := range order {
		if _, ok := result.Profiles[id]; !ok {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += services.MaxArtistsPerRequest {
		batch := missing[start:min(start+services.MaxArtistsPerRequest, len(missing))]
		profiles, err := catalog.SeveralArtists(ctx, batch)
		if err != nil {
			a.logger.Warn("artist enrichment unavailable", "batch", len(batch), "error", err)
			continue
		}
		for _, p := range profiles {
			result.Profiles[p.SpotifyID] = p
			result.Debug.ProfilesFetched++
			a.writeBack(ctx, models.ItemArtistProfile, p.SpotifyID, p)
		}
	}

	var uncached []string
	for _, id := range missing {
		if _, ok := result.Profiles[id]; !ok {
			uncached = append(uncached, id)
		}
	}
	if len(uncached) > 0 {
		cached, err := a.store.GetArtists(ctx, uncached)
		if err != nil {
			a.logger.Warn("cached artist profiles unavailable", "error", err)
		}
		for id, p := range cached {
			result.Profiles[id] = p
			result.Debug.ProfilesCached++
		}
	}

	for i := range result.Seeds {
		t := &result.Seeds[i].Track
		p, ok := result.Profiles[seedArtist(result.Seeds[i])]
		if !ok {
			continue
		}
		if len(t.Genres) == 0 {
			t.Genres = p.Genres
		}
		if t.ArtistName == "" {
			t.ArtistName = p.Name
		}
	}
}

// seedArtist is the artist whose profile describes a seed: the track's own artist when known.
func seedArtist(s models.CandidateSeed) string {
	if s.Track.ArtistID != "" {
		return s.Track.ArtistID
	}
	return s.SeedArtistID
}

// normalizeArtistIDs validates and de-duplicates the candidate artist IDs, keeping their order.
func normalizeArtistIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for i, raw := range ids {
		id, err := shared.NormalizeCatalogID(raw)
		if err != nil {
			return nil, fmt.Errorf("artistIds[%d]: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// exclusionSet collects the current and already played tracks.
func exclusionSet(req Stage2Request) map[string]struct{} {
	out := make(map[string]struct{}, len(req.PlayedTrackIDs)+1)
	for _, raw := range append([]string{req.CurrentTrackID}, req.PlayedTrackIDs...) {
		if raw == "" {
			continue
		}
		if id, err := shared.NormalizeCatalogID(raw); err == nil {
			out[id] = struct{}{}
		} else {
			out[raw] = struct{}{}
		}
	}
	return out
}
