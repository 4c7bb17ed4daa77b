package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Tick runs one maintenance pass, streaming progress until it reports.
//
// Detached healing work is awaited before the command returns so the process does not exit mid-action.
func (r *Runner) Tick(ctx context.Context, cmd *cli.Command) error {
	if err := r.wire(); err != nil {
		return err
	}

	opts := tasks.TickOptions{
		Token:        cmd.String("token"),
		AwaitHealing: cmd.Bool("await"),
	}

	var (
		progress chan tasks.ProgressUpdate
		done     chan struct{}
	)
	if !cmd.Bool("quiet") && !cmd.Bool("json") {
		progress = make(chan tasks.ProgressUpdate, 32)
		done = make(chan struct{})
		opts.Progress = progress
		go func() {
			defer close(done)
			for update := range progress {
				r.writeProgress(update)
			}
		}()
	}

	res, task := r.scheduler.Tick(ctx, opts)
	if progress != nil {
		close(progress)
		<-done
	}

	if task != nil && !opts.AwaitHealing {
		report, err := task.Wait(ctx)
		if err != nil {
			r.logger.Warn("healing did not finish", "error", err)
		} else if report != nil {
			res.Healing = *report
			res.Healing.Detached = true
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, true)
	}
	return r.writeTick(res)
}

func (r *Runner) writeProgress(update tasks.ProgressUpdate) {
	step := ""
	if update.Total > 0 {
		step = styles.help.Render(fmt.Sprintf(" [%d/%d]", update.Step, update.Total))
	}
	r.writePlain("%s %s%s\n", styles.warn.Render(update.Phase.String()), update.Message, step)
}

func (r *Runner) writeTick(res *tasks.TickResult) error {
	r.writePlainHeader("Maintenance tick")
	if err := r.writePlain("%s", formatter.TickToText(res)); err != nil {
		return err
	}

	switch {
	case len(res.Errors) > 0 || res.Failed > 0:
		r.writePlainln("%s", styles.err.Render("✗ tick finished with failures"))
	case res.Remaining > 0:
		r.writePlainln("%s", styles.warn.Render("… work deferred to the next tick"))
	default:
		r.writePlainln("%s", styles.ok.Render("✓ queue drained"))
	}
	return nil
}
