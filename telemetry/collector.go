package telemetry

// Collector accumulates combat events within windows of battle time and
// produces WindowStats.
type Collector struct {
	windowDurationMs int64

	// Current window tracking
	windowStartMs int64

	// Event counters for current window
	abilities   int
	consumables int
	rejections  int
	crits       int
	damageDealt float64
	damageTaken float64
	misses      int
	kills       int
	scrap       int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in battle seconds.
func NewCollector(windowDurationSec float64) *Collector {
	ms := int64(windowDurationSec * 1000)
	if ms < 1 {
		ms = 1
	}
	return &Collector{windowDurationMs: ms}
}

// Record folds one event into the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventAbility:
		c.abilities++
		if ev.Crit {
			c.crits++
		}
	case EventConsumable:
		c.consumables++
	case EventRejected:
		c.rejections++
	case EventDamageDealt:
		c.damageDealt += ev.Amount
	case EventDamageTaken, EventHazard:
		c.damageTaken += ev.Amount
	case EventMiss:
		c.misses++
	case EventKill:
		c.kills++
		c.scrap += ev.Scrap
	}
}

// ShouldFlush returns true if enough battle time has passed to flush the window.
func (c *Collector) ShouldFlush(nowMs int64) bool {
	return nowMs-c.windowStartMs >= c.windowDurationMs
}

// BattleSample is the battle state sampled at window end.
type BattleSample struct {
	Wave         int
	PlayerHP     float64
	PlayerMaxHP  float64
	EnemyHPFracs []float64 // Current/max HP of every living enemy
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(nowMs int64, sample BattleSample) WindowStats {
	var critRate, dps, hpFrac float64
	if c.abilities > 0 {
		critRate = float64(c.crits) / float64(c.abilities)
	}
	if elapsed := nowMs - c.windowStartMs; elapsed > 0 {
		dps = c.damageDealt / (float64(elapsed) / 1000)
	}
	if sample.PlayerMaxHP > 0 {
		hpFrac = sample.PlayerHP / sample.PlayerMaxHP
	}

	hpMean, hpP10, hpP50, hpP90 := ComputeDistribution(sample.EnemyHPFracs)

	stats := WindowStats{
		WindowStartMs: c.windowStartMs,
		WindowEndMs:   nowMs,
		CombatTimeSec: float64(nowMs) / 1000,

		Wave:         sample.Wave,
		Enemies:      len(sample.EnemyHPFracs),
		PlayerHPFrac: hpFrac,

		AbilitiesUsed:   c.abilities,
		ConsumablesUsed: c.consumables,
		Rejections:      c.rejections,
		Crits:           c.crits,
		CritRate:        critRate,

		DamageDealt: c.damageDealt,
		DamageTaken: c.damageTaken,
		DPS:         dps,
		Misses:      c.misses,
		Kills:       c.kills,
		ScrapEarned: c.scrap,

		EnemyHPMean: hpMean,
		EnemyHPP10:  hpP10,
		EnemyHPP50:  hpP50,
		EnemyHPP90:  hpP90,
	}

	// Reset for next window
	c.windowStartMs = nowMs
	c.abilities = 0
	c.consumables = 0
	c.rejections = 0
	c.crits = 0
	c.damageDealt = 0
	c.damageTaken = 0
	c.misses = 0
	c.kills = 0
	c.scrap = 0

	return stats
}

// Reset starts a fresh window at the given battle time. Used when a new
// battle clock starts.
func (c *Collector) Reset(nowMs int64) {
	c.Flush(nowMs, BattleSample{})
}

// WindowDurationMs returns the window length in battle milliseconds.
func (c *Collector) WindowDurationMs() int64 {
	return c.windowDurationMs
}
