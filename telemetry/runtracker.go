package telemetry

// EnemyRecord tracks one enemy over its lifetime in a battle.
type EnemyRecord struct {
	Template    string
	SpawnMs     int64
	DamageTaken float64
	HitsTaken   int
}

// RunTotals are the per-run counters reported at run end.
type RunTotals struct {
	DamageDealt    float64
	DamageTaken    float64
	EnemiesKilled  int
	ItemsUsed      int
	TurnsElapsed   int // Player actions resolved
	CriticalHits   int
	Misses         int
	Rejections     int
	LongestFightMs int64 // Longest spawn-to-kill time of any enemy
}

// RunTracker accumulates run totals and per-enemy lifetimes from battle events.
type RunTracker struct {
	totals  RunTotals
	enemies map[int]*EnemyRecord
}

// NewRunTracker creates an empty tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{enemies: make(map[int]*EnemyRecord)}
}

// Register starts tracking a spawned enemy.
func (rt *RunTracker) Register(enemyID int, template string, spawnMs int64) {
	rt.enemies[enemyID] = &EnemyRecord{Template: template, SpawnMs: spawnMs}
}

// Get returns the record for an enemy, or nil if not tracked.
func (rt *RunTracker) Get(enemyID int) *EnemyRecord {
	return rt.enemies[enemyID]
}

// Observe folds one event into the run.
func (rt *RunTracker) Observe(ev Event) {
	switch ev.Type {
	case EventAbility:
		rt.totals.TurnsElapsed++
		if ev.Crit {
			rt.totals.CriticalHits++
		}
	case EventConsumable:
		rt.totals.TurnsElapsed++
		rt.totals.ItemsUsed++
	case EventRejected:
		rt.totals.Rejections++
	case EventDamageDealt:
		rt.totals.DamageDealt += ev.Amount
		if s := rt.enemies[ev.EntityID]; s != nil {
			s.DamageTaken += ev.Amount
			s.HitsTaken++
		}
	case EventDamageTaken, EventHazard:
		rt.totals.DamageTaken += ev.Amount
	case EventMiss:
		rt.totals.Misses++
	case EventKill:
		rt.totals.EnemiesKilled++
		if s := rt.enemies[ev.EntityID]; s != nil {
			rt.totals.LongestFightMs = max(rt.totals.LongestFightMs, ev.TimeMs-s.SpawnMs)
			delete(rt.enemies, ev.EntityID)
		}
	}
}

// Totals returns the counters so far.
func (rt *RunTracker) Totals() RunTotals {
	return rt.totals
}

// Count returns the number of tracked living enemies.
func (rt *RunTracker) Count() int {
	return len(rt.enemies)
}

// Reset clears the tracker for a new run.
func (rt *RunTracker) Reset() {
	rt.totals = RunTotals{}
	clear(rt.enemies)
}
