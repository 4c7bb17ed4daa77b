package round

import (
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
)

func TestClassify(t *testing.T) {
	t.Run("endpoints", func(t *testing.T) {
		if got := Classify(0.15).InfluencePercent; got != 0 {
			t.Errorf("expected 0%% at gravity 0.15, got %v", got)
		}
		if got := Classify(0.70).InfluencePercent; got != 100 {
			t.Errorf("expected 100%% at gravity 0.70, got %v", got)
		}
	})

	t.Run("monotonic", func(t *testing.T) {
		prev := -1.0
		for g := 0.0; g <= 1.0; g += 0.005 {
			p := Classify(g).InfluencePercent
			if p < prev {
				t.Fatalf("influence decreased at gravity %v: %v < %v", g, p, prev)
			}
			prev = p
		}
	})

	tests := []struct {
		gravity float64
		zone    models.Zone
	}{
		{0.15, models.ZoneDesperation},
		{0.19, models.ZoneDesperation},
		{0.26, models.ZoneDeadZone},
		{0.30, models.ZoneDeadZone},
		{0.42, models.ZoneDeadZone},
		{0.51, models.ZoneGoodInfluence},
		{0.58, models.ZoneGoodInfluence},
		{0.59, models.ZoneHighInfluence},
		{0.60, models.ZoneHighInfluence},
		{0.70, models.ZoneHighInfluence},
	}

	for _, tt := range tests {
		c := Classify(tt.gravity)
		if c.Zone != tt.zone {
			t.Errorf("Classify(%v) = %s (%.4f%%), expected %s", tt.gravity, c.Zone, c.InfluencePercent, tt.zone)
		}
	}

	t.Run("target fetch gate", func(t *testing.T) {
		for _, g := range []float64{0.15, 0.19, 0.51, 0.60, 0.70} {
			if !Classify(g).TargetFetchEnabled() {
				t.Errorf("expected target fetch enabled at %v", g)
			}
		}
		for _, g := range []float64{0.26, 0.30, 0.42} {
			if Classify(g).TargetFetchEnabled() {
				t.Errorf("expected target fetch disabled at %v", g)
			}
		}
	})

	t.Run("out of range gravity is clamped", func(t *testing.T) {
		if got := Classify(0.05).InfluencePercent; got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
		if got := Classify(0.9).InfluencePercent; got != 100 {
			t.Errorf("expected 100, got %v", got)
		}
		if got := ClampGravity(0.9); got != GravityMax {
			t.Errorf("expected %v, got %v", GravityMax, got)
		}
	})
}

func TestShouldInject(t *testing.T) {
	tests := []struct {
		gravity float64
		round   int
		want    bool
	}{
		{0.60, 1, true},
		{0.30, 10, true},
		{0.65, 5, true},
		{0.59, 0, true},
		{0.58, 9, false},
		{0.30, 9, false},
		{0.15, 0, false},
	}

	for _, tt := range tests {
		if got := ShouldInject(tt.gravity, tt.round); got != tt.want {
			t.Errorf("ShouldInject(%v, %d) = %v, expected %v", tt.gravity, tt.round, got, tt.want)
		}
	}
}

func TestPhase(t *testing.T) {
	tests := []struct {
		round int
		level string
		drift float64
	}{
		{-1, "exploration", 0.30},
		{0, "exploration", 0.30},
		{3, "exploration", 0.30},
		{4, "refinement", 0.20},
		{6, "refinement", 0.20},
		{7, "convergence", 0.10},
		{9, "convergence", 0.10},
		{10, "resolution", 0.05},
		{250, "resolution", 0.05},
	}

	for _, tt := range tests {
		p := Phase(tt.round)
		if p.Level != tt.level || p.DriftMagnitude != tt.drift {
			t.Errorf("Phase(%d) = %+v, expected %s/%v", tt.round, p, tt.level, tt.drift)
		}
	}

	if HardConvergenceActive(9) {
		t.Error("round 9 should not force convergence")
	}
	if !HardConvergenceActive(10) {
		t.Error("round 10 should force convergence")
	}
}
