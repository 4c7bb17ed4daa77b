package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// HealingOutcome is the result of dispatching one action.
type HealingOutcome struct {
	Type     models.HealingType `json:"type"`
	EntityID string             `json:"entityId"`
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
}

// HealingReport summarizes one healing dispatch.
//
// A detached dispatch reports only Dispatched and Detached; the counts belong to the task.
type HealingReport struct {
	Dispatched bool             `json:"dispatched"`
	Detached   bool             `json:"detached"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Outcomes   []HealingOutcome `json:"outcomes,omitempty"`
}

// HealingTask is the handle of a running healing dispatch. Callers may Wait on it or let it finish on its own.
type HealingTask struct {
	done   chan struct{}
	report HealingReport
	err    error
}

// Wait blocks until the dispatch finishes or ctx ends. A nil task reports an empty result.
func (t *HealingTask) Wait(ctx context.Context) (*HealingReport, error) {
	if t == nil {
		return &HealingReport{}, nil
	}
	select {
	case <-t.done:
		report := t.report
		return &report, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the dispatch finishes.
func (t *HealingTask) Done() <-chan struct{} {
	return t.done
}

// SelfHealingQueue holds corrective actions for bad data detected at play time.
//
// Actions are unique per (type, entity) and are removed once dispatched, whatever the outcome.
// Nothing is re-enqueued automatically; a caller wanting a retry must enqueue again.
type SelfHealingQueue struct {
	store    HealingStore
	recorder Recorder
	logger   *log.Logger
	inflight sync.WaitGroup
}

// NewSelfHealingQueue creates a healing queue. recorder and logger may be nil.
func NewSelfHealingQueue(store HealingStore, recorder Recorder, logger *log.Logger) *SelfHealingQueue {
	return &SelfHealingQueue{
		store:    store,
		recorder: recorder,
		logger:   shared.WithLogger(logger, "queue", "healing"),
	}
}

// Enqueue stores an action and reports whether it was new.
func (q *SelfHealingQueue) Enqueue(ctx context.Context, action models.HealingAction) (bool, error) {
	if action.Type != models.HealTrackDetails {
		return false, fmt.Errorf("%w: unknown healing type %q", shared.ErrValidation, action.Type)
	}
	id, err := shared.NormalizeCatalogID(action.EntityID)
	if err != nil {
		return false, err
	}
	action.EntityID = id

	added, err := q.store.EnqueueHealing(ctx, action)
	if err != nil {
		return false, err
	}
	if added {
		q.logger.Info("healing action queued", "type", action.Type, "entity", action.EntityID, "reason", action.Error)
	}
	return added, nil
}

// Dispatch pops up to limit actions in the background and returns the task handle.
// The work outlives ctx cancellation so a detached dispatch can finish after the request ends.
func (q *SelfHealingQueue) Dispatch(ctx context.Context, limit int) *HealingTask {
	task := &HealingTask{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)

	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		defer close(task.done)
		task.report, task.err = q.Process(bg, limit)
	}()
	return task
}

// Drain waits for every detached dispatch to finish, or for ctx to end.
func (q *SelfHealingQueue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process pops up to limit actions and dispatches each synchronously.
func (q *SelfHealingQueue) Process(ctx context.Context, limit int) (HealingReport, error) {
	report := HealingReport{Dispatched: true}

	actions, err := q.store.PopHealing(ctx, limit)
	if err != nil {
		q.logger.Error("failed to pop healing actions", "error", err)
		return report, err
	}

	for _, action := range actions {
		outcome := HealingOutcome{Type: action.Type, EntityID: action.EntityID, OK: true}
		if err := q.dispatch(ctx, action); err != nil {
			outcome.OK = false
			outcome.Error = err.Error()
			report.Failed++
			q.logger.Warn("healing action failed", "type", action.Type, "entity", action.EntityID, "error", err)
		} else {
			report.Succeeded++
		}
		report.Attempted++
		report.Outcomes = append(report.Outcomes, outcome)

		if q.recorder != nil {
			q.recorder.RecordHealing(string(action.Type), outcome.OK)
		}
	}
	return report, nil
}

func (q *SelfHealingQueue) dispatch(ctx context.Context, action models.HealingAction) error {
	if !shared.IsCatalogID(action.EntityID) {
		return fmt.Errorf("%w: healing entity %q", shared.ErrInvalidCatalogID, action.EntityID)
	}

	switch action.Type {
	case models.HealTrackDetails:
		if err := q.store.MarkUnplayable(ctx, action.EntityID); err != nil {
			return err
		}
		_, err := q.store.EnqueueLazyUpdate(ctx, models.ItemTrackDetails, action.EntityID, nil)
		return err
	default:
		return fmt.Errorf("%w: unknown healing type %q", shared.ErrValidation, action.Type)
	}
}
