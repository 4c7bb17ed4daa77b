// package models defines the data model shared by the round pipeline and the maintenance scheduler
package models

import (
	"time"
)

// ArtistProfile is the cached catalog view of an artist.
//
// Popularity and FollowerCount are nil when the catalog has not reported them.
type ArtistProfile struct {
	SpotifyID     string   `json:"spotifyId"`
	Name          string   `json:"name"`
	Genres        []string `json:"genres"`
	Popularity    *int     `json:"popularity,omitempty"`
	FollowerCount *int     `json:"followerCount,omitempty"`
}

// Track is a catalog track as seen by the pipeline.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ArtistID   string   `json:"artistId"`
	ArtistName string   `json:"artistName"`
	Album      string   `json:"album,omitempty"`
	DurationMS int      `json:"durationMs,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	Genres     []string `json:"genres,omitempty"`
}

// SeedSource distinguishes organic candidates from backfilled ones.
type SeedSource string

const (
	SourceTopTrack  SeedSource = "top-track"
	SourceEmbedding SeedSource = "embedding"
)

// CandidateSeed is one entry of a Stage 2 candidate pool.
type CandidateSeed struct {
	Track        Track      `json:"track"`
	Source       SeedSource `json:"source"`
	SeedArtistID string     `json:"seedArtistId"`
}

// Zone is the behavioral band a player's influence falls into.
type Zone string

const (
	ZoneDesperation   Zone = "desperation"
	ZoneDeadZone      Zone = "dead_zone"
	ZoneGoodInfluence Zone = "good_influence"
	ZoneHighInfluence Zone = "high_influence"
)

// ExplorationPhase describes how far a round has progressed towards resolution.
type ExplorationPhase struct {
	Level                string  `json:"level"`
	DriftMagnitude       float64 `json:"driftMagnitude"`
	RoundRangeApplicable string  `json:"roundRangeApplicable"`
}

// QueueItemType names the cache-upsert operation a lazy update dispatches to.
type QueueItemType string

const (
	ItemArtistProfile   QueueItemType = "artist_profile"
	ItemArtistTopTracks QueueItemType = "artist_top_tracks"
	ItemTrackDetails    QueueItemType = "track_details"
)

// Valid reports whether t is a known lazy update type.
func (t QueueItemType) Valid() bool {
	switch t {
	case ItemArtistProfile, ItemArtistTopTracks, ItemTrackDetails:
		return true
	}
	return false
}

// QueueStatus is the lifecycle state of a lazy update.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// QueueItem is a pending cache write-back.
//
// Payload is the raw JSON the live pipeline observed; an empty payload asks the scheduler to fetch the entity itself.
type QueueItem struct {
	ID        string
	Type      QueueItemType
	CatalogID string
	Payload   []byte
	Status    QueueStatus
	Attempts  int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HealingType names a corrective action.
type HealingType string

const (
	HealTrackDetails HealingType = "track_details"
)

// HealingAction is a corrective action for bad data observed in the cache, unique per (Type, EntityID).
type HealingAction struct {
	ID         string      `json:"id,omitempty"`
	Type       HealingType `json:"type"`
	EntityID   string      `json:"entityId"`
	EntityName string      `json:"entityName,omitempty"`
	Error      string      `json:"error"`
	Timestamp  time.Time   `json:"timestamp"`
}

// TopTracks is the payload of an artist_top_tracks lazy update.
type TopTracks struct {
	ArtistID string  `json:"artistId"`
	Tracks   []Track `json:"tracks"`
}

// BackfillMetrics are the process-lifetime counters of the genre backfill crawler.
type BackfillMetrics struct {
	TrackSuccesses int `json:"trackSuccesses"`
	TrackFailures  int `json:"trackFailures"`
	ArtistFetches  int `json:"artistFetches"`
	CacheHits      int `json:"cacheHits"`
	Batches        int `json:"batches"`
}

// Sub returns the per-field difference m - before.
func (m BackfillMetrics) Sub(before BackfillMetrics) BackfillMetrics {
	return BackfillMetrics{
		TrackSuccesses: m.TrackSuccesses - before.TrackSuccesses,
		TrackFailures:  m.TrackFailures - before.TrackFailures,
		ArtistFetches:  m.ArtistFetches - before.ArtistFetches,
		CacheHits:      m.CacheHits - before.CacheHits,
		Batches:        m.Batches - before.Batches,
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
