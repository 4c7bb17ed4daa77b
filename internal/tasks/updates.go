package tasks

import (
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
)

// ProgressUpdate represents a progress event during a maintenance tick.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Tick phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Tick phase enumeration
type Phase int

const (
	ReclaimStale Phase = iota
	ClaimItems
	ProcessItems
	RequeueItems
	BackfillGenres
	DispatchHealing
)

func (p Phase) String() string {
	switch p {
	case ReclaimStale:
		return "reclaim_stale"
	case ClaimItems:
		return "claim_items"
	case ProcessItems:
		return "process_items"
	case RequeueItems:
		return "requeue_items"
	case BackfillGenres:
		return "backfill_genres"
	case DispatchHealing:
		return "dispatch_healing"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func reclaimUpdate(n int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReclaimStale,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reclaimed %d stale items", n),
		Data:    n,
	}
}

func claimUpdate(n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClaimItems,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Claimed %d lazy updates", n),
		Data:    n,
	}
}

func itemUpdate(step, total int, item models.QueueItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ProcessItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Processing %s %s...", item.Type, item.CatalogID),
		Data:    item,
	}
}

func requeueUpdate(n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RequeueItems,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Returning %d unattempted items to pending", n),
		Data:    n,
	}
}

func backfillUpdate(batch int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BackfillGenres,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Backfilling genres for up to %d tracks...", batch),
	}
}

func healingUpdate(limit int, detached bool) ProgressUpdate {
	mode := "awaited"
	if detached {
		mode = "detached"
	}
	return ProgressUpdate{
		Phase:   DispatchHealing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Dispatching up to %d healing actions (%s)...", limit, mode),
	}
}
