package round

import "github.com/desertthunder/jukebox/internal/models"

// MaxRoundTurns is the round at which scoring is forced towards resolution.
const MaxRoundTurns = 10

type phaseBand struct {
	last  int
	level string
	drift float64
	span  string
}

// last is inclusive; the final band is open-ended.
var phaseBands = []phaseBand{
	{last: 3, level: "exploration", drift: 0.30, span: "0-3"},
	{last: 6, level: "refinement", drift: 0.20, span: "4-6"},
	{last: MaxRoundTurns - 1, level: "convergence", drift: 0.10, span: "7-9"},
}

var resolutionBand = phaseBand{level: "resolution", drift: 0.05, span: "10+"}

// Phase returns the exploration phase of a round. Negative rounds are treated as round 0.
func Phase(round int) models.ExplorationPhase {
	band := resolutionBand
	for _, b := range phaseBands {
		if round <= b.last {
			band = b
			break
		}
	}
	return models.ExplorationPhase{
		Level:                band.level,
		DriftMagnitude:       band.drift,
		RoundRangeApplicable: band.span,
	}
}

// HardConvergenceActive reports whether the round has reached [MaxRoundTurns].
func HardConvergenceActive(round int) bool {
	return round >= MaxRoundTurns
}
