package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/stats"
)

// LazyStore is the lazy update queue plus the cache upserts its items dispatch to.
type LazyStore interface {
	ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
	ClaimPending(ctx context.Context, limit int) ([]models.QueueItem, error)
	CompleteItem(ctx context.Context, id string) error
	FailItem(ctx context.Context, id, message string) error
	RetryItem(ctx context.Context, id, message string) error
	RequeueItems(ctx context.Context, ids []string) (int64, error)

	UpsertArtist(ctx context.Context, p models.ArtistProfile) error
	UpsertTrack(ctx context.Context, t models.Track) error
	UpsertTopTracks(ctx context.Context, artistID string, tracks []models.Track) error
}

// HealingStore is the healing queue plus the corrective writes of its actions.
type HealingStore interface {
	EnqueueHealing(ctx context.Context, action models.HealingAction) (bool, error)
	PopHealing(ctx context.Context, limit int) ([]models.HealingAction, error)
	MarkUnplayable(ctx context.Context, id string) error
	EnqueueLazyUpdate(ctx context.Context, itemType models.QueueItemType, catalogID string, payload []byte) (*models.QueueItem, error)
}

// BackfillStore is what the genre crawler samples and writes.
type BackfillStore interface {
	TracksMissingGenres(ctx context.Context, n, maxAttempts int) ([]models.Track, error)
	GetArtist(ctx context.Context, id string) (*models.ArtistProfile, error)
	UpsertArtist(ctx context.Context, p models.ArtistProfile) error
	SetTrackGenres(ctx context.Context, id string, genres []string) error
	RecordGenreFailure(ctx context.Context, id string) error
}

// Store is the full persistence contract of the scheduler.
type Store interface {
	LazyStore
	HealingStore
	BackfillStore
}

// Recorder receives tick outcomes for process-wide metrics. [metrics.Collector] implements it.
type Recorder interface {
	stats.Observer
	RecordTick(processed, failed, remaining int, d time.Duration)
	RecordBackfill(successes, failures int)
	RecordHealing(actionType string, ok bool)
}

// TickOptions are the per-invocation inputs of [Scheduler.Tick].
type TickOptions struct {
	Token        string                // Caller-supplied bearer token; the provider is asked when empty
	AwaitHealing bool                  // Block until dispatched healing actions finish
	Progress     chan<- ProgressUpdate // Optional, never blocks the tick
}

// BackfillResult is the genre backfill share of a tick.
type BackfillResult struct {
	Ran       bool `json:"ran"`
	Processed int  `json:"processed"`
	Resolved  int  `json:"resolved"`
	Failed    int  `json:"failed"`
}

// TickResult aggregates the counters of one tick. Internal failures are reported in Errors.
type TickResult struct {
	Processed       int            `json:"processed"`
	Failed          int            `json:"failed"`
	Remaining       int            `json:"remaining"`
	Claimed         int            `json:"claimed"`
	Requeued        int            `json:"requeued"`
	Reclaimed       int            `json:"reclaimed"`
	DeadlineReached bool           `json:"deadlineReached"`
	DurationMS      int64          `json:"durationMs"`
	GenreBackfill   BackfillResult `json:"genreBackfill"`
	Healing         HealingReport  `json:"healing"`
	APICalls        stats.Snapshot `json:"apiCalls"`
	Errors          []string       `json:"errors,omitempty"`
}

// Scheduler is the deadline-bound maintenance entry point.
//
// Every unit of work is started only after checking the clock, so a tick overruns its deadline by at most one in-flight call.
type Scheduler struct {
	store    Store
	catalogs services.CatalogFactory
	tokens   services.TokenProvider
	cfg      shared.MaintenanceConfig
	recorder Recorder
	logger   *log.Logger
	now      func() time.Time

	backfill *GenreBackfillCrawler
	healing  *SelfHealingQueue
}

// NewScheduler creates a scheduler. tokens, recorder and logger may be nil.
func NewScheduler(store Store, catalogs services.CatalogFactory, tokens services.TokenProvider, cfg shared.MaintenanceConfig, recorder Recorder, logger *log.Logger) *Scheduler {
	logger = shared.WithLogger(logger, "component", "tick")
	return &Scheduler{
		store:    store,
		catalogs: catalogs,
		tokens:   tokens,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		backfill: NewGenreBackfillCrawler(store, cfg.MaxAttempts, recorder, logger),
		healing:  NewSelfHealingQueue(store, recorder, logger),
	}
}

// Healing returns the scheduler's healing queue.
func (s *Scheduler) Healing() *SelfHealingQueue {
	return s.healing
}

// Backfill returns the scheduler's genre crawler.
func (s *Scheduler) Backfill() *GenreBackfillCrawler {
	return s.backfill
}

// staleAfter is how long an item may stay processing before a later tick takes it back.
func (s *Scheduler) staleAfter() time.Duration {
	return 2 * s.cfg.Deadline()
}

// Tick runs one maintenance pass: lazy updates, then genre backfill, then healing, each only if enough budget remains.
//
// The returned task is nil when healing did not run. In detached mode the caller may still Wait on it.
func (s *Scheduler) Tick(ctx context.Context, opts TickOptions) (*TickResult, *HealingTask) {
	start := s.now()
	deadline := s.cfg.Deadline()
	budget := func() time.Duration { return deadline - s.now().Sub(start) }

	result := &TickResult{}
	tracker := stats.NewTracker(s.observer())

	token := s.resolveToken(ctx, opts.Token)
	var catalog services.CatalogClient
	if token != "" && s.catalogs != nil {
		catalog = services.Instrument(s.catalogs(token), tracker)
	}

	if n, err := s.store.ReclaimStaleProcessing(ctx, start.Add(-s.staleAfter())); err != nil {
		result.Errors = append(result.Errors, err.Error())
		s.logger.Error("failed to reclaim stale items", "error", err)
	} else if n > 0 {
		result.Reclaimed = int(n)
		s.logger.Warn("reclaimed stale processing items", "count", n)
		sendProgress(opts.Progress, reclaimUpdate(n))
	}

	s.processLazy(ctx, catalog, budget, opts.Progress, result)

	if budget() > time.Duration(s.cfg.BackfillMinRemainingMS)*time.Millisecond {
		sendProgress(opts.Progress, backfillUpdate(s.cfg.BackfillBatch))
		result.GenreBackfill = s.runBackfill(ctx, catalog, budget, result)
	}

	var task *HealingTask
	if token != "" && budget() > time.Duration(s.cfg.HealingMinRemainingMS)*time.Millisecond {
		sendProgress(opts.Progress, healingUpdate(s.cfg.HealingLimit, !opts.AwaitHealing))
		task = s.healing.Dispatch(ctx, s.cfg.HealingLimit)
		if opts.AwaitHealing {
			report, err := task.Wait(ctx)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
			}
			if report != nil {
				result.Healing = *report
			}
		} else {
			result.Healing = HealingReport{Dispatched: true, Detached: true}
		}
	}

	elapsed := s.now().Sub(start)
	result.DurationMS = elapsed.Milliseconds()
	result.APICalls = tracker.Snapshot()
	if s.recorder != nil {
		s.recorder.RecordTick(result.Processed, result.Failed, result.Remaining, elapsed)
	}

	s.logger.Info("tick finished",
		"processed", result.Processed, "failed", result.Failed, "remaining", result.Remaining,
		"backfilled", result.GenreBackfill.Resolved, "healing", result.Healing.Attempted,
		"duration_ms", result.DurationMS)
	return result, task
}

func (s *Scheduler) observer() stats.Observer {
	if s.recorder == nil {
		return nil
	}
	return s.recorder
}

// resolveToken prefers the caller's token and falls back to the provider.
func (s *Scheduler) resolveToken(ctx context.Context, token string) string {
	if token != "" || s.tokens == nil {
		return token
	}
	t, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.Warn("no catalog token for tick", "error", err)
		return ""
	}
	return t
}

func (s *Scheduler) runBackfill(ctx context.Context, catalog services.CatalogClient, budget func() time.Duration, result *TickResult) BackfillResult {
	before := s.backfill.Metrics()
	n, err := s.backfill.ProcessBatch(ctx, s.cfg.BackfillBatch, catalog, budget)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		s.logger.Error("genre backfill failed", "error", err)
	}
	delta := s.backfill.Metrics().Sub(before)
	return BackfillResult{
		Ran:       true,
		Processed: n,
		Resolved:  delta.TrackSuccesses,
		Failed:    delta.TrackFailures,
	}
}
