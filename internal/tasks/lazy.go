package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

// errNeedsCatalog marks an item that carries no payload while no catalog token is available.
// Such items go back to pending without counting an attempt.
var errNeedsCatalog = errors.New("lazy update needs a catalog token")

type itemOutcome int

const (
	itemCompleted itemOutcome = iota
	itemFailed
	itemDeferred
)

// processLazy drains up to BatchLimit claimed items, checking the budget before each one.
// Items not attempted (deadline, cancellation, missing token) are requeued with a context that outlives ctx.
func (s *Scheduler) processLazy(ctx context.Context, catalog services.CatalogClient, budget func() time.Duration, progress chan<- ProgressUpdate, result *TickResult) {
	claimed, err := s.store.ClaimPending(ctx, s.cfg.BatchLimit)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		s.logger.Error("failed to claim lazy updates", "error", err)
		return
	}
	result.Claimed = len(claimed)
	if len(claimed) == 0 {
		return
	}
	sendProgress(progress, claimUpdate(len(claimed)))

	var deferred []string
	next := 0
	for ; next < len(claimed); next++ {
		if budget() <= 0 {
			result.DeadlineReached = true
			s.logger.Warn("deadline reached, deferring lazy updates",
				"error", shared.ErrDeadlineReached, "left", len(claimed)-next)
			break
		}
		if err := ctx.Err(); err != nil {
			s.logger.Warn("tick cancelled, deferring lazy updates", "error", err, "left", len(claimed)-next)
			break
		}

		item := claimed[next]
		sendProgress(progress, itemUpdate(next+1, len(claimed), item))

		outcome, err := s.processItem(ctx, catalog, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		switch outcome {
		case itemCompleted:
			result.Processed++
		case itemFailed:
			result.Failed++
		case itemDeferred:
			deferred = append(deferred, item.ID)
		}
	}
	for _, item := range claimed[next:] {
		deferred = append(deferred, item.ID)
	}

	result.Remaining = len(claimed) - result.Processed - result.Failed

	if len(deferred) > 0 {
		sendProgress(progress, requeueUpdate(len(deferred)))
		n, err := s.store.RequeueItems(context.WithoutCancel(ctx), deferred)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			s.logger.Error("failed to requeue lazy updates", "count", len(deferred), "error", err)
		}
		result.Requeued = int(n)
	}
}

// processItem applies one item and records its transition.
//
// Persistence failures return the item to pending until it has used its attempts; every other failure is terminal.
// When the transition itself cannot be stored the item is deferred and the error returned, so the caller requeues it.
func (s *Scheduler) processItem(ctx context.Context, catalog services.CatalogClient, item models.QueueItem) (itemOutcome, error) {
	err := s.apply(ctx, catalog, item)
	if errors.Is(err, errNeedsCatalog) {
		return itemDeferred, nil
	}

	// Transitions must land even when the request context ends mid-item.
	tctx := context.WithoutCancel(ctx)
	if err == nil {
		if err := s.store.CompleteItem(tctx, item.ID); err != nil {
			s.logger.Error("failed to complete lazy update", "id", item.ID, "error", err)
			return itemDeferred, fmt.Errorf("complete lazy update %s: %w", item.ID, err)
		}
		return itemCompleted, nil
	}

	retryable := errors.Is(err, shared.ErrPersistence) || errors.Is(err, shared.ErrRateLimited)
	if retryable && item.Attempts+1 < s.cfg.MaxAttempts {
		s.logger.Warn("lazy update will be retried", "id", item.ID, "type", item.Type, "attempt", item.Attempts+1, "error", err)
		if rerr := s.store.RetryItem(tctx, item.ID, err.Error()); rerr != nil {
			s.logger.Error("failed to return lazy update to pending", "id", item.ID, "error", rerr)
			return itemDeferred, fmt.Errorf("retry lazy update %s: %w", item.ID, rerr)
		}
		return itemFailed, nil
	}

	s.logger.Warn("lazy update failed", "id", item.ID, "type", item.Type, "catalog_id", item.CatalogID, "error", err)
	if ferr := s.store.FailItem(tctx, item.ID, err.Error()); ferr != nil {
		s.logger.Error("failed to record lazy update failure", "id", item.ID, "error", ferr)
		return itemDeferred, fmt.Errorf("fail lazy update %s: %w", item.ID, ferr)
	}
	return itemFailed, nil
}

// apply dispatches an item to its cache upsert. Items without a payload are fetched from the catalog first.
func (s *Scheduler) apply(ctx context.Context, catalog services.CatalogClient, item models.QueueItem) error {
	if !item.Type.Valid() {
		return fmt.Errorf("%w: unknown lazy update type %q", shared.ErrValidation, item.Type)
	}
	if !shared.IsCatalogID(item.CatalogID) {
		return fmt.Errorf("%w: lazy update %s targets %q", shared.ErrInvalidCatalogID, item.ID, item.CatalogID)
	}
	if len(item.Payload) == 0 && catalog == nil {
		return errNeedsCatalog
	}

	switch item.Type {
	case models.ItemArtistProfile:
		var p models.ArtistProfile
		if len(item.Payload) > 0 {
			if err := decodePayload(item, &p); err != nil {
				return err
			}
		} else {
			fetched, err := catalog.Artist(ctx, item.CatalogID)
			if err != nil {
				return err
			}
			p = *fetched
		}
		if p.SpotifyID == "" {
			p.SpotifyID = item.CatalogID
		}
		if p.SpotifyID != item.CatalogID {
			return fmt.Errorf("%w: payload artist %s does not match %s", shared.ErrValidation, p.SpotifyID, item.CatalogID)
		}
		return s.store.UpsertArtist(ctx, p)

	case models.ItemArtistTopTracks:
		var top models.TopTracks
		if len(item.Payload) > 0 {
			if err := decodePayload(item, &top); err != nil {
				return err
			}
		} else {
			tracks, err := catalog.ArtistTopTracks(ctx, item.CatalogID)
			if err != nil {
				return err
			}
			top.Tracks = tracks
		}
		return s.store.UpsertTopTracks(ctx, item.CatalogID, top.Tracks)

	case models.ItemTrackDetails:
		var t models.Track
		if len(item.Payload) > 0 {
			if err := decodePayload(item, &t); err != nil {
				return err
			}
		} else {
			fetched, err := catalog.Track(ctx, item.CatalogID)
			if err != nil {
				return err
			}
			t = *fetched
		}
		if t.ID == "" {
			t.ID = item.CatalogID
		}
		if t.ID != item.CatalogID {
			return fmt.Errorf("%w: payload track %s does not match %s", shared.ErrValidation, t.ID, item.CatalogID)
		}
		return s.store.UpsertTrack(ctx, t)
	}
	return nil
}

func decodePayload(item models.QueueItem, v any) error {
	if err := json.Unmarshal(item.Payload, v); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", shared.ErrValidation, item.Type, err)
	}
	return nil
}
