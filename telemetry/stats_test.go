package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDistribution(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	mean, p10, p50, p90 := ComputeDistribution(values)

	// Mean should be 0.55
	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}

	// P10 should be around 0.19
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}

	// P50 should be around 0.55
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}

	// P90 should be around 0.91
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
}

func TestComputeDistributionEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeDistribution([]float64{})

	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

// ---------- Collector ----------

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(10)

	c.Record(NewAbilityEvent(100, "strike", true))
	c.Record(NewAbilityEvent(200, "strike", false))
	c.Record(NewRejectedEvent(300, "arc_storm"))
	c.Record(NewDamageDealtEvent(100, 1, "strike", 30, true))
	c.Record(NewDamageDealtEvent(200, 1, "strike", 20, false))
	c.Record(NewDamageTakenEvent(400, 2, "attack", 8))
	c.Record(NewHazardEvent(0, 12))
	c.Record(NewKillEvent(200, 1, "scrap_drone", false, 5))

	if c.ShouldFlush(9999) {
		t.Error("window should not flush before 10s")
	}
	if !c.ShouldFlush(10000) {
		t.Error("window should flush at 10s")
	}

	s := c.Flush(10000, BattleSample{Wave: 3, PlayerHP: 60, PlayerMaxHP: 120, EnemyHPFracs: []float64{0.5, 1}})
	if s.AbilitiesUsed != 2 || s.Crits != 1 || s.Rejections != 1 {
		t.Errorf("action counters = %+v", s)
	}
	if math.Abs(s.CritRate-0.5) > 1e-9 {
		t.Errorf("crit rate = %v, want 0.5", s.CritRate)
	}
	if s.DamageDealt != 50 || s.DamageTaken != 20 {
		t.Errorf("damage = %v/%v, want 50/20", s.DamageDealt, s.DamageTaken)
	}
	if math.Abs(s.DPS-5) > 1e-9 {
		t.Errorf("dps = %v, want 5", s.DPS)
	}
	if s.Kills != 1 || s.ScrapEarned != 5 {
		t.Errorf("kills/scrap = %d/%d", s.Kills, s.ScrapEarned)
	}
	if s.PlayerHPFrac != 0.5 || s.Enemies != 2 || s.Wave != 3 {
		t.Errorf("sample = %+v", s)
	}
	if math.Abs(s.EnemyHPMean-0.75) > 1e-9 {
		t.Errorf("enemy hp mean = %v", s.EnemyHPMean)
	}

	// Counters reset for the next window
	next := c.Flush(20000, BattleSample{})
	if next.AbilitiesUsed != 0 || next.DamageDealt != 0 || next.WindowStartMs != 10000 {
		t.Errorf("next window = %+v", next)
	}
}
