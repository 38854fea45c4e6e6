package telemetry

import "log/slog"

// PilotStats is the per-pilot breakdown of GameStats.
type PilotStats struct {
	Runs        int     `json:"runs"`
	Victories   int     `json:"victories"`
	Defeats     int     `json:"defeats"`
	Kills       int     `json:"kills"`
	DamageDealt float64 `json:"damageDealt"`
	BestStage   int     `json:"bestStage"`
	BestWave    int     `json:"bestWave"`
}

// StageStats is the per-stage breakdown of GameStats.
type StageStats struct {
	Attempts       int   `json:"attempts"`
	Clears         int   `json:"clears"`
	FastestClearMs int64 `json:"fastestClearMs,omitempty"`
}

// GameStats accumulates counters over the lifetime of a save. Only Reset
// clears it; talent resets never touch it.
type GameStats struct {
	TotalDamageDealt float64 `json:"totalDamageDealt"`
	TotalDamageTaken float64 `json:"totalDamageTaken"`
	HighestHit       float64 `json:"highestHit"`
	CriticalHits     int     `json:"criticalHits"`

	EnemiesKilled int            `json:"enemiesKilled"`
	BossesKilled  int            `json:"bossesKilled"`
	KillsByEnemy  map[string]int `json:"killsByEnemy"`

	HazardsSurvived int            `json:"hazardsSurvived"`
	ItemsUsed       int            `json:"itemsUsed"`
	ItemUsage       map[string]int `json:"itemUsage"`
	AbilitiesUsed   int            `json:"abilitiesUsed"`
	AbilityUsage    map[string]int `json:"abilityUsage"`

	RunsStarted   int `json:"runsStarted"`
	RunsWon       int `json:"runsWon"`
	RunsLost      int `json:"runsLost"`
	StagesCleared int `json:"stagesCleared"`
	ScrapEarned   int `json:"scrapEarned"`
	ScrapSpent    int `json:"scrapSpent"`

	EndlessRuns       int `json:"endlessRuns"`
	EndlessBestWave   int `json:"endlessBestWave"`
	EndlessBestScore  int `json:"endlessBestScore"`
	EndlessTotalKills int `json:"endlessTotalKills"`
	UpgradesChosen    int `json:"upgradesChosen"`

	TalentsUnlocked int   `json:"talentsUnlocked"`
	CombatTimeMs    int64 `json:"combatTimeMs"`

	Pilots map[string]*PilotStats `json:"pilots"`
	Stages map[int]*StageStats    `json:"stages"`
}

// NewGameStats returns an empty aggregate with its maps allocated.
func NewGameStats() *GameStats {
	s := &GameStats{}
	s.init()
	return s
}

func (s *GameStats) init() {
	if s.KillsByEnemy == nil {
		s.KillsByEnemy = make(map[string]int)
	}
	if s.ItemUsage == nil {
		s.ItemUsage = make(map[string]int)
	}
	if s.AbilityUsage == nil {
		s.AbilityUsage = make(map[string]int)
	}
	if s.Pilots == nil {
		s.Pilots = make(map[string]*PilotStats)
	}
	if s.Stages == nil {
		s.Stages = make(map[int]*StageStats)
	}
}

// Pilot returns the breakdown for a pilot, creating it on first use.
func (s *GameStats) Pilot(id string) *PilotStats {
	s.init()
	p := s.Pilots[id]
	if p == nil {
		p = &PilotStats{}
		s.Pilots[id] = p
	}
	return p
}

// Stage returns the breakdown for a stage, creating it on first use.
func (s *GameStats) Stage(n int) *StageStats {
	s.init()
	st := s.Stages[n]
	if st == nil {
		st = &StageStats{}
		s.Stages[n] = st
	}
	return st
}

// RecordDamageDealt adds player damage against enemies.
func (s *GameStats) RecordDamageDealt(pilot string, amount float64, crit bool) {
	if amount <= 0 {
		return
	}
	s.TotalDamageDealt += amount
	s.HighestHit = max(s.HighestHit, amount)
	if crit {
		s.CriticalHits++
	}
	if pilot != "" {
		s.Pilot(pilot).DamageDealt += amount
	}
}

// RecordDamageTaken adds damage taken by the player.
func (s *GameStats) RecordDamageTaken(amount float64) {
	if amount > 0 {
		s.TotalDamageTaken += amount
	}
}

// RecordEnemyKill counts a kill.
func (s *GameStats) RecordEnemyKill(pilot, template string, boss bool) {
	s.init()
	s.EnemiesKilled++
	s.KillsByEnemy[template]++
	if boss {
		s.BossesKilled++
	}
	if pilot != "" {
		s.Pilot(pilot).Kills++
	}
}

// RecordHazardSurvival counts a hazard the player lived through.
func (s *GameStats) RecordHazardSurvival() {
	s.HazardsSurvived++
}

// RecordItemUsage counts a consumable use.
func (s *GameStats) RecordItemUsage(id string) {
	s.init()
	s.ItemsUsed++
	s.ItemUsage[id]++
}

// RecordAbilityUsage counts an ability use.
func (s *GameStats) RecordAbilityUsage(id string) {
	s.init()
	s.AbilitiesUsed++
	s.AbilityUsage[id]++
}

// RecordRunStart counts a story run start.
func (s *GameStats) RecordRunStart(pilot string) {
	s.RunsStarted++
	s.Pilot(pilot).Runs++
}

// RecordStageAttempt counts an attempt at a story stage.
func (s *GameStats) RecordStageAttempt(stage int) {
	s.Stage(stage).Attempts++
}

// RecordStageClear counts a cleared story stage and its duration.
func (s *GameStats) RecordStageClear(pilot string, stage int, durationMs int64) {
	s.StagesCleared++
	st := s.Stage(stage)
	st.Clears++
	if durationMs > 0 && (st.FastestClearMs == 0 || durationMs < st.FastestClearMs) {
		st.FastestClearMs = durationMs
	}
	p := s.Pilot(pilot)
	p.BestStage = max(p.BestStage, stage)
}

// RecordRunEnd counts a finished story run.
func (s *GameStats) RecordRunEnd(pilot string, victory bool) {
	p := s.Pilot(pilot)
	if victory {
		s.RunsWon++
		p.Victories++
	} else {
		s.RunsLost++
		p.Defeats++
	}
}

// RecordScrap adds scrap earned (positive) or spent (negative).
func (s *GameStats) RecordScrap(delta int) {
	if delta >= 0 {
		s.ScrapEarned += delta
	} else {
		s.ScrapSpent -= delta
	}
}

// RecordEndlessRun folds a finished endless run into the aggregates.
func (s *GameStats) RecordEndlessRun(pilot string, wave, kills, score int) {
	s.EndlessRuns++
	s.EndlessBestWave = max(s.EndlessBestWave, wave)
	s.EndlessBestScore = max(s.EndlessBestScore, score)
	s.EndlessTotalKills += kills
	p := s.Pilot(pilot)
	p.BestWave = max(p.BestWave, wave)
}

// RecordUpgradeChosen counts an endless upgrade pick.
func (s *GameStats) RecordUpgradeChosen() {
	s.UpgradesChosen++
}

// RecordTalentUnlock counts a talent rank bought.
func (s *GameStats) RecordTalentUnlock() {
	s.TalentsUnlocked++
}

// RecordCombatTime adds battle clock time.
func (s *GameStats) RecordCombatTime(ms int64) {
	if ms > 0 {
		s.CombatTimeMs += ms
	}
}

// Reset clears every counter.
func (s *GameStats) Reset() {
	*s = GameStats{}
	s.init()
}

// Clone returns a deep copy.
func (s *GameStats) Clone() *GameStats {
	c := *s
	c.KillsByEnemy = cloneCounts(s.KillsByEnemy)
	c.ItemUsage = cloneCounts(s.ItemUsage)
	c.AbilityUsage = cloneCounts(s.AbilityUsage)
	c.Pilots = make(map[string]*PilotStats, len(s.Pilots))
	for k, v := range s.Pilots {
		p := *v
		c.Pilots[k] = &p
	}
	c.Stages = make(map[int]*StageStats, len(s.Stages))
	for k, v := range s.Stages {
		st := *v
		c.Stages[k] = &st
	}
	return &c
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s *GameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("damage_dealt", s.TotalDamageDealt),
		slog.Float64("damage_taken", s.TotalDamageTaken),
		slog.Int("kills", s.EnemiesKilled),
		slog.Int("bosses", s.BossesKilled),
		slog.Int("crits", s.CriticalHits),
		slog.Int("runs_started", s.RunsStarted),
		slog.Int("runs_won", s.RunsWon),
		slog.Int("runs_lost", s.RunsLost),
		slog.Int("stages_cleared", s.StagesCleared),
		slog.Int("endless_runs", s.EndlessRuns),
		slog.Int("endless_best_wave", s.EndlessBestWave),
		slog.Int("endless_best_score", s.EndlessBestScore),
	)
}
