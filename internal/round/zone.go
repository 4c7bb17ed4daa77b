package round

import (
	"math"

	"github.com/desertthunder/jukebox/internal/models"
)

// Gravity bounds that map to 0% and 100% influence.
const (
	GravityMin = 0.15
	GravityMax = 0.70
)

// Influence thresholds, in percent.
const (
	DesperationCeiling = 20.0
	DeadZoneCeiling    = 50.0
	HighInfluenceFloor = 80.0
)

// Classification is the derived view of one player's gravity for the current round.
type Classification struct {
	Gravity          float64     `json:"gravity"`
	InfluencePercent float64     `json:"influencePercent"`
	Zone             models.Zone `json:"zone"`
}

// InfluencePercent rescales gravity to [0, 100].
//
// The result is rounded to six decimals so that the documented boundary gravities land exactly on their thresholds.
func InfluencePercent(gravity float64) float64 {
	p := (gravity - GravityMin) / (GravityMax - GravityMin) * 100
	p = math.Max(0, math.Min(100, p))
	return math.Round(p*1e6) / 1e6
}

// Classify maps gravity to its influence percentage and zone.
func Classify(gravity float64) Classification {
	p := InfluencePercent(gravity)

	var zone models.Zone
	switch {
	case p < DesperationCeiling:
		zone = models.ZoneDesperation
	case p <= DeadZoneCeiling:
		zone = models.ZoneDeadZone
	case p < HighInfluenceFloor:
		zone = models.ZoneGoodInfluence
	default:
		zone = models.ZoneHighInfluence
	}

	return Classification{Gravity: gravity, InfluencePercent: p, Zone: zone}
}

// TargetFetchEnabled reports whether the player's target artists feed candidate sourcing.
// Only the dead zone relies on the seed artist alone.
func (c Classification) TargetFetchEnabled() bool {
	return c.Zone != models.ZoneDeadZone
}

// ShouldInject reports whether the target artist is forced into the candidate set.
func ShouldInject(gravity float64, round int) bool {
	return InfluencePercent(gravity) >= HighInfluenceFloor || round >= MaxRoundTurns
}

// ClampGravity bounds gravity to the observed domain.
func ClampGravity(gravity float64) float64 {
	return math.Max(GravityMin, math.Min(GravityMax, gravity))
}
