package round

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/stats"
)

// Store is the slice of the persistent cache the round pipeline reads from and queues write-backs to.
type Store interface {
	GetArtists(ctx context.Context, ids []string) (map[string]models.ArtistProfile, error)
	RandomArtists(ctx context.Context, n int, exclude map[string]struct{}) ([]models.ArtistProfile, error)
	TopTracks(ctx context.Context, artistID string) ([]models.Track, error)
	RandomTracks(ctx context.Context, n int, exclude map[string]struct{}) ([]models.Track, error)
	EnqueueLazyUpdate(ctx context.Context, itemType models.QueueItemType, catalogID string, payload []byte) (*models.QueueItem, error)
}

// PoolRecorder receives the size and source breakdown of every assembled pool.
type PoolRecorder interface {
	RecordPool(stage string, size int, bySource map[string]int)
}

// Observer combines the process-wide sinks a pipeline stage reports to. Both parts may be nil.
type Observer interface {
	stats.Observer
	PoolRecorder
}

// pipeline holds what both stages share: the store, a catalog bound per request, and instrumentation.
type pipeline struct {
	store    Store
	catalogs services.CatalogFactory
	observer Observer
	logger   *log.Logger
}

// begin binds the catalog to token and wraps it in a fresh per-invocation tracker.
func (p *pipeline) begin(token string) (services.CatalogClient, *stats.Tracker) {
	var obs stats.Observer
	if p.observer != nil {
		obs = p.observer
	}
	tracker := stats.NewTracker(obs)
	return services.Instrument(p.catalogs(token), tracker), tracker
}

func (p *pipeline) recordPool(stage string, size int, bySource map[string]int) {
	if p.observer != nil {
		p.observer.RecordPool(stage, size, bySource)
	}
}

// writeBack queues a cache update carrying v as its payload. Failures only cost a future cache miss.
func (p *pipeline) writeBack(ctx context.Context, itemType models.QueueItemType, id string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("failed to encode write-back", "type", itemType, "id", id, "error", err)
		return
	}
	if _, err := p.store.EnqueueLazyUpdate(ctx, itemType, id, payload); err != nil {
		p.logger.Warn("failed to queue write-back", "type", itemType, "id", id, "error", err)
	}
}
