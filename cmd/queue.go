package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/urfave/cli/v3"
)

// QueueCounts is the JSON shape of `queue stats`.
type QueueCounts struct {
	Lazy    map[models.QueueStatus]int `json:"lazy"`
	Healing int                        `json:"healing"`
	Artists int                        `json:"artists"`
}

// QueueStats prints how many lazy updates sit in each status, plus pending healing actions.
func (r *Runner) QueueStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.wire(); err != nil {
		return err
	}

	lazy, err := r.store.QueueStats(ctx)
	if err != nil {
		return err
	}
	healing, err := r.store.CountHealing(ctx)
	if err != nil {
		return err
	}
	artists, err := r.store.CountArtists(ctx)
	if err != nil {
		return err
	}

	counts := QueueCounts{Lazy: lazy, Healing: healing, Artists: artists}
	if cmd.Bool("json") {
		return r.writeJSON(counts, true)
	}

	r.writePlainHeader("Queues")
	for _, status := range []models.QueueStatus{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed} {
		r.writePlain("%-12s %d\n", status, lazy[status])
	}
	r.writePlain("%-12s %d\n", "healing", healing)
	r.writePlain("%-12s %d\n", "artists", artists)
	return nil
}

// QueueClear deletes completed lazy updates older than --older-than.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.wire(); err != nil {
		return err
	}

	cutoff := time.Now().Add(-cmd.Duration("older-than"))
	n, err := r.store.ClearCompleted(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	r.logger.Info("cleared completed lazy updates", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	r.writePlain("%s %d items\n", styles.ok.Render("✓ Cleared"), n)
	return nil
}
