package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/jukebox/internal/round"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/urfave/cli/v3"
)

// defaultGravities sample each zone boundary.
var defaultGravities = []float64{0.15, 0.25, 0.26, 0.4, 0.425, 0.5, 0.59, 0.7}

// Zones prints how each gravity argument is classified, and the phase of --round.
func (r *Runner) Zones(ctx context.Context, cmd *cli.Command) error {
	gravities := defaultGravities
	if cmd.Args().Present() {
		gravities = nil
		for _, arg := range cmd.Args().Slice() {
			g, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("%w: gravity %q is not a number", shared.ErrValidation, arg)
			}
			gravities = append(gravities, g)
		}
	}

	roundNumber := int(cmd.Int("round"))
	phase := round.Phase(roundNumber)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.help).
		Headers("GRAVITY", "INFLUENCE", "ZONE", "TARGETS", "INJECT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.title.UnsetMarginBottom().Padding(0, 1)
			}
			return styles.cell
		})

	for _, g := range gravities {
		c := round.Classify(g)
		t.Row(
			strconv.FormatFloat(c.Gravity, 'f', 3, 64),
			strconv.FormatFloat(c.InfluencePercent, 'f', 1, 64)+"%",
			styles.zone(c.Zone),
			styles.check(c.TargetFetchEnabled()),
			styles.check(round.ShouldInject(g, roundNumber)),
		)
	}

	r.writePlainHeader(fmt.Sprintf("Round %d: %s phase, drift %.2f", roundNumber, phase.Level, phase.DriftMagnitude))
	r.writePlain("%s\n", t.Render())
	if round.HardConvergenceActive(roundNumber) {
		r.writePlain("%s\n", styles.warn.Render("hard convergence active"))
	}
	return nil
}
