package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated combat statistics for a window of battle time.
type WindowStats struct {
	WindowStartMs int64   `csv:"-"`
	WindowEndMs   int64   `csv:"window_end_ms"`
	CombatTimeSec float64 `csv:"combat_time"`

	// Battle state at window end
	Wave         int     `csv:"wave"`
	Enemies      int     `csv:"enemies"`
	PlayerHPFrac float64 `csv:"player_hp"`

	// Player actions during window
	AbilitiesUsed   int     `csv:"abilities"`
	ConsumablesUsed int     `csv:"consumables"`
	Rejections      int     `csv:"rejections"`
	Crits           int     `csv:"crits"`
	CritRate        float64 `csv:"crit_rate"`

	// Damage during window
	DamageDealt float64 `csv:"damage_dealt"`
	DamageTaken float64 `csv:"damage_taken"`
	DPS         float64 `csv:"dps"`
	Misses      int     `csv:"misses"`
	Kills       int     `csv:"kills"`
	ScrapEarned int     `csv:"scrap"`

	// Enemy HP distribution (sampled at window end)
	EnemyHPMean float64 `csv:"enemy_hp_mean"`
	EnemyHPP10  float64 `csv:"enemy_hp_p10"`
	EnemyHPP50  float64 `csv:"enemy_hp_p50"`
	EnemyHPP90  float64 `csv:"enemy_hp_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles from a set of values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start_ms", s.WindowStartMs),
		slog.Int64("window_end_ms", s.WindowEndMs),
		slog.Float64("combat_time", s.CombatTimeSec),
		slog.Int("wave", s.Wave),
		slog.Int("enemies", s.Enemies),
		slog.Float64("player_hp", s.PlayerHPFrac),
		slog.Int("abilities", s.AbilitiesUsed),
		slog.Int("consumables", s.ConsumablesUsed),
		slog.Int("rejections", s.Rejections),
		slog.Int("crits", s.Crits),
		slog.Float64("crit_rate", s.CritRate),
		slog.Float64("damage_dealt", s.DamageDealt),
		slog.Float64("damage_taken", s.DamageTaken),
		slog.Float64("dps", s.DPS),
		slog.Int("misses", s.Misses),
		slog.Int("kills", s.Kills),
		slog.Int("scrap", s.ScrapEarned),
		slog.Float64("enemy_hp_mean", s.EnemyHPMean),
		slog.Float64("enemy_hp_p10", s.EnemyHPP10),
		slog.Float64("enemy_hp_p50", s.EnemyHPP50),
		slog.Float64("enemy_hp_p90", s.EnemyHPP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
