package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/stats"
	"golang.org/x/sync/errgroup"
)

// DefaultMinCandidateArtists is the artist floor used when none is configured.
const DefaultMinCandidateArtists = 100

// PlayerTarget is one player's steering state for the round.
//
// Targets holds catalog IDs, catalog URIs, or plain artist names; names are resolved by search.
type PlayerTarget struct {
	PlayerID string   `json:"playerId"`
	Gravity  float64  `json:"gravity"`
	Targets  []string `json:"targets"`
}

// PlaybackState is the player-side view of what is currently playing.
type PlaybackState struct {
	CurrentTrack *models.Track `json:"currentTrack"`
	IsPlaying    bool          `json:"isPlaying"`
	ProgressMS   int           `json:"progressMs,omitempty"`
}

// Stage1Request starts a round.
type Stage1Request struct {
	RoundNumber   int            `json:"roundNumber"`
	PlayerTargets []PlayerTarget `json:"playerTargets"`
	PlaybackState PlaybackState  `json:"playbackState"`
}

// PlayerReport is the per-player diagnostic of a Stage 1 run.
type PlayerReport struct {
	Classification
	TargetFetch  bool `json:"targetFetch"`
	Injected     bool `json:"injected"`
	Resolved     int  `json:"resolved"`
	RelatedCount int  `json:"relatedCount"`
	TargetErrors int  `json:"targetErrors"`
}

// Stage1Debug carries the counts of a Stage 1 run for observability.
type Stage1Debug struct {
	SeedCount     int                     `json:"seedCount"`
	TargetCount   int                     `json:"targetCount"`
	InjectedCount int                     `json:"injectedCount"`
	FallbackCount int                     `json:"fallbackCount"`
	TotalUnique   int                     `json:"totalUnique"`
	Players       map[string]PlayerReport `json:"players"`
	APICalls      stats.Snapshot          `json:"apiCalls"`
	DurationMS    int64                   `json:"durationMs"`
}

// Stage1Result is the candidate artist set of a round.
type Stage1Result struct {
	TargetProfiles        map[string][]models.ArtistProfile `json:"targetProfiles"`
	SeedArtistID          string                            `json:"seedArtistId"`
	SeedArtistName        string                            `json:"seedArtistName"`
	CurrentTrack          models.Track                      `json:"currentTrack"`
	RelatedArtistIDs      []string                          `json:"relatedArtistIds"`
	CandidateProfiles     []models.ArtistProfile            `json:"candidateProfiles"`
	UpdatedGravities      map[string]float64                `json:"updatedGravities"`
	ExplorationPhase      models.ExplorationPhase           `json:"explorationPhase"`
	HardConvergenceActive bool                              `json:"hardConvergenceActive"`
	OGDrift               float64                           `json:"ogDrift"`
	Debug                 Stage1Debug                       `json:"debug"`
}

// Resolver builds the candidate artist set of a round from the seed artist, the players' targets and the cache.
type Resolver struct {
	pipeline
	minArtists int
	now        func() time.Time
}

// NewResolver creates a Stage 1 resolver. observer and logger may be nil.
func NewResolver(store Store, catalogs services.CatalogFactory, cfg shared.RoundConfig, observer Observer, logger *log.Logger) *Resolver {
	minArtists := cfg.MinCandidateArtists
	if minArtists <= 0 {
		minArtists = DefaultMinCandidateArtists
	}
	return &Resolver{
		pipeline: pipeline{
			store:    store,
			catalogs: catalogs,
			observer: observer,
			logger:   shared.WithLogger(logger, "component", "stage1"),
		},
		minArtists: minArtists,
		now:        time.Now,
	}
}

// playerFetch collects what the catalog returned for one player.
type playerFetch struct {
	profiles []models.ArtistProfile
	related  []models.ArtistProfile
	errors   int
}

// candidateSet is an insertion-ordered set of artist profiles keyed by catalog ID.
type candidateSet struct {
	order    []string
	profiles map[string]models.ArtistProfile
}

func newCandidateSet() *candidateSet {
	return &candidateSet{profiles: make(map[string]models.ArtistProfile)}
}

// add inserts or refreshes p and reports whether p was new.
func (c *candidateSet) add(p models.ArtistProfile) bool {
	_, exists := c.profiles[p.SpotifyID]
	c.profiles[p.SpotifyID] = p
	if !exists {
		c.order = append(c.order, p.SpotifyID)
	}
	return !exists
}

func (c *candidateSet) has(id string) bool {
	_, ok := c.profiles[id]
	return ok
}

func (c *candidateSet) len() int {
	return len(c.order)
}

func (c *candidateSet) exclusion() map[string]struct{} {
	out := make(map[string]struct{}, len(c.order))
	for _, id := range c.order {
		out[id] = struct{}{}
	}
	return out
}

func (c *candidateSet) list() []models.ArtistProfile {
	out := make([]models.ArtistProfile, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.profiles[id])
	}
	return out
}

// Resolve runs Stage 1 for one round.
//
// Validation failures of the playback state wrap [shared.ErrValidation] and happen before any catalog call.
// Only the seed artist profile is required: every other catalog failure degrades to fewer organic candidates.
func (r *Resolver) Resolve(ctx context.Context, token string, req Stage1Request) (*Stage1Result, error) {
	start := r.now()

	track, seedID, err := seedFromPlayback(req.PlaybackState)
	if err != nil {
		return nil, err
	}

	catalog, tracker := r.begin(token)

	result := &Stage1Result{
		TargetProfiles:        make(map[string][]models.ArtistProfile),
		SeedArtistID:          seedID,
		CurrentTrack:          track,
		UpdatedGravities:      make(map[string]float64),
		ExplorationPhase:      Phase(req.RoundNumber),
		HardConvergenceActive: HardConvergenceActive(req.RoundNumber),
		Debug:                 Stage1Debug{Players: make(map[string]PlayerReport)},
	}
	result.OGDrift = result.ExplorationPhase.DriftMagnitude

	classes := make([]Classification, len(req.PlayerTargets))
	for i, pt := range req.PlayerTargets {
		classes[i] = Classify(pt.Gravity)
		result.UpdatedGravities[playerKey(pt, i)] = ClampGravity(pt.Gravity)
	}

	var (
		seedProfile *models.ArtistProfile
		seedRelated []models.ArtistProfile
		fetches     = make([]playerFetch, len(req.PlayerTargets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.seedProfile(gctx, catalog, seedID)
		if err != nil {
			return err
		}
		seedProfile = p
		return nil
	})
	g.Go(func() error {
		related, err := catalog.RelatedArtists(gctx, seedID)
		if err != nil {
			r.logger.Warn("seed related artists unavailable", "seed", seedID, "error", err)
			return nil
		}
		seedRelated = related
		return nil
	})
	for i, pt := range req.PlayerTargets {
		g.Go(func() error {
			fetches[i] = r.fetchPlayer(gctx, catalog, pt, classes[i].TargetFetchEnabled())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.SeedArtistName = seedProfile.Name
	if result.CurrentTrack.ArtistName == "" {
		result.CurrentTrack.ArtistName = seedProfile.Name
	}

	set := newCandidateSet()
	for _, p := range seedRelated {
		if shared.IsCatalogID(p.SpotifyID) && set.add(p) {
			result.Debug.SeedCount++
		}
	}

	for i, pt := range req.PlayerTargets {
		key := playerKey(pt, i)
		f := fetches[i]
		report := PlayerReport{
			Classification: classes[i],
			TargetFetch:    classes[i].TargetFetchEnabled(),
			Resolved:       len(f.profiles),
			RelatedCount:   len(f.related),
			TargetErrors:   f.errors,
		}

		for _, p := range f.related {
			if shared.IsCatalogID(p.SpotifyID) && set.add(p) {
				result.Debug.TargetCount++
			}
		}

		if ShouldInject(pt.Gravity, req.RoundNumber) {
			report.Injected = true
			for _, p := range f.profiles {
				if set.add(p) {
					result.Debug.InjectedCount++
				}
			}
		}

		result.TargetProfiles[key] = f.profiles
		result.Debug.Players[key] = report
	}

	if need := r.minArtists - set.len(); need > 0 {
		exclude := set.exclusion()
		exclude[seedID] = struct{}{}
		fill, err := r.store.RandomArtists(ctx, need, exclude)
		if err != nil {
			r.logger.Warn("artist top-up unavailable", "need", need, "error", err)
		}
		for _, p := range fill {
			if shared.IsCatalogID(p.SpotifyID) && set.add(p) {
				result.Debug.FallbackCount++
			}
		}
	}

	result.CandidateProfiles = set.list()
	result.RelatedArtistIDs = append([]string(nil), set.order...)
	result.Debug.TotalUnique = set.len()

	r.queueWriteBacks(ctx, seedProfile, seedRelated, fetches)

	result.Debug.APICalls = tracker.Snapshot()
	result.Debug.DurationMS = r.now().Sub(start).Milliseconds()
	r.recordPool("stage1", set.len(), map[string]int{
		"seed":     result.Debug.SeedCount,
		"target":   result.Debug.TargetCount,
		"injected": result.Debug.InjectedCount,
		"fallback": result.Debug.FallbackCount,
	})

	r.logger.Debug("stage1 resolved",
		"round", req.RoundNumber, "seed", seedID, "players", len(req.PlayerTargets),
		"unique", set.len(), "api_calls", result.Debug.APICalls.Total)
	return result, nil
}

// seedFromPlayback extracts and validates the current track and its primary artist.
func seedFromPlayback(state PlaybackState) (models.Track, string, error) {
	if state.CurrentTrack == nil || state.CurrentTrack.ID == "" {
		return models.Track{}, "", shared.ErrNoCurrentTrack
	}
	track := *state.CurrentTrack

	trackID, err := shared.NormalizeCatalogID(track.ID)
	if err != nil {
		return models.Track{}, "", fmt.Errorf("current track: %w", err)
	}
	track.ID = trackID

	if track.ArtistID == "" {
		return models.Track{}, "", shared.ErrNoPrimaryArtist
	}
	seedID, err := shared.NormalizeCatalogID(track.ArtistID)
	if err != nil {
		return models.Track{}, "", fmt.Errorf("seed artist: %w", err)
	}
	track.ArtistID = seedID
	return track, seedID, nil
}

// seedProfile fetches the seed artist, falling back to the cache when the catalog fails.
func (r *Resolver) seedProfile(ctx context.Context, catalog services.CatalogClient, seedID string) (*models.ArtistProfile, error) {
	p, err := catalog.Artist(ctx, seedID)
	if err == nil {
		return p, nil
	}

	cached, cacheErr := r.store.GetArtists(ctx, []string{seedID})
	if cacheErr == nil {
		if c, ok := cached[seedID]; ok {
			r.logger.Warn("seed artist served from cache", "seed", seedID, "error", err)
			return &c, nil
		}
	}

	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrNotAuthorized), errors.Is(err, shared.ErrUpstreamUnavailable):
		return nil, fmt.Errorf("resolve seed artist %s: %w", seedID, err)
	}
	return nil, fmt.Errorf("%w: resolve seed artist %s: %v", shared.ErrUpstreamUnavailable, seedID, err)
}

// fetchPlayer resolves a player's targets and, when the zone allows, their related artists.
// Targets run concurrently; a failing target is skipped.
func (r *Resolver) fetchPlayer(ctx context.Context, catalog services.CatalogClient, pt PlayerTarget, related bool) playerFetch {
	var (
		mu  sync.Mutex
		out playerFetch
		g   errgroup.Group
	)

	resolved := make([]*models.ArtistProfile, len(pt.Targets))
	relatedBy := make([][]models.ArtistProfile, len(pt.Targets))

	for i, target := range pt.Targets {
		g.Go(func() error {
			p, err := r.resolveTarget(ctx, catalog, target)
			if err != nil {
				r.logger.Warn("target artist unresolved", "player", pt.PlayerID, "target", target, "error", err)
				mu.Lock()
				out.errors++
				mu.Unlock()
				return nil
			}
			resolved[i] = p

			if !related {
				return nil
			}
			rel, err := catalog.RelatedArtists(ctx, p.SpotifyID)
			if err != nil {
				r.logger.Warn("target related artists unavailable", "player", pt.PlayerID, "target", p.SpotifyID, "error", err)
				mu.Lock()
				out.errors++
				mu.Unlock()
				return nil
			}
			relatedBy[i] = rel
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	for i, p := range resolved {
		if p == nil {
			continue
		}
		if _, dup := seen[p.SpotifyID]; !dup {
			seen[p.SpotifyID] = struct{}{}
			out.profiles = append(out.profiles, *p)
		}
		out.related = append(out.related, relatedBy[i]...)
	}
	return out
}

// resolveTarget looks a target up by ID when it is catalog-shaped and by name otherwise.
func (r *Resolver) resolveTarget(ctx context.Context, catalog services.CatalogClient, target string) (*models.ArtistProfile, error) {
	if id, err := shared.NormalizeCatalogID(target); err == nil {
		return catalog.Artist(ctx, id)
	}
	p, err := catalog.SearchArtist(ctx, target)
	if err != nil {
		return nil, err
	}
	if !shared.IsCatalogID(p.SpotifyID) {
		return nil, fmt.Errorf("%w: search result %q", shared.ErrInvalidCatalogID, p.SpotifyID)
	}
	return p, nil
}

// queueWriteBacks hands every profile fetched from the catalog to the maintenance scheduler.
func (r *Resolver) queueWriteBacks(ctx context.Context, seed *models.ArtistProfile, seedRelated []models.ArtistProfile, fetches []playerFetch) {
	queued := make(map[string]struct{})
	queue := func(p models.ArtistProfile) {
		if !shared.IsCatalogID(p.SpotifyID) {
			return
		}
		if _, ok := queued[p.SpotifyID]; ok {
			return
		}
		queued[p.SpotifyID] = struct{}{}
		r.writeBack(ctx, models.ItemArtistProfile, p.SpotifyID, p)
	}

	queue(*seed)
	for _, f := range fetches {
		for _, p := range f.profiles {
			queue(p)
		}
	}
	for _, p := range seedRelated {
		queue(p)
	}
	for _, f := range fetches {
		for _, p := range f.related {
			queue(p)
		}
	}
}

func playerKey(pt PlayerTarget, i int) string {
	if pt.PlayerID != "" {
		return pt.PlayerID
	}
	return fmt.Sprintf("player-%d", i+1)
}
