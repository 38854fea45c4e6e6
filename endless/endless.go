// Package endless implements endless-mode progression: wave generation and
// scaling, upgrade choices on interval waves, daily modifiers, hazards and
// scoring.
package endless

import (
	"errors"
	"math"
	"time"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
)

// Rejection reasons.
var (
	ErrNotActive         = errors.New("no endless run active")
	ErrAlreadyActive     = errors.New("endless run already active")
	ErrWaveInProgress    = errors.New("wave still in progress")
	ErrUpgradePending    = errors.New("upgrade choice required before advancing")
	ErrNoUpgradePending  = errors.New("no upgrade choice pending")
	ErrUpgradeNotOffered = errors.New("upgrade not among the offered choices")
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
)

// Modifier is a daily rule; see ModifierForDate.
type Modifier = content.Modifier

// Difficulty is the HP/damage/scrap multiplier set for a run.
type Difficulty = config.DifficultyConfig

// RunState is the endless run, independent of any story run.
type RunState struct {
	Active     bool      `json:"active"`
	PilotID    string    `json:"pilotId"`
	Module     string    `json:"module"`
	Difficulty string    `json:"difficulty"`
	ModifierID string    `json:"modifier"`
	Wave       int       `json:"wave"`
	Kills      int       `json:"kills"`
	WaveKills  int       `json:"waveKills"`
	StartedAt  time.Time `json:"startedAt"`

	HP        float64 `json:"hp"`
	MaxHP     float64 `json:"maxHp"`
	Energy    float64 `json:"energy"`
	MaxEnergy float64 `json:"maxEnergy"`
	Heat      float64 `json:"heat"`
	Scrap     int     `json:"scrap"`

	Upgrades          []string `json:"upgrades"`
	CooldownReduction float64  `json:"cooldownReduction"`
	DamageBonus       float64  `json:"damageBonus"` // Fraction added to damage
	ScrapMult         float64  `json:"scrapMult"`

	WaveCleared     bool     `json:"waveCleared"`
	PendingUpgrade  bool     `json:"pendingUpgrade"`
	Choices         []string `json:"choices"`
	HazardsSurvived int      `json:"hazardsSurvived"`
}

// Vitals is the combatant snapshot a run starts from.
type Vitals struct {
	HP        float64
	MaxHP     float64
	Energy    float64
	MaxEnergy float64
	Heat      float64
}

// NewRun starts a run at wave 1.
func NewRun(pilotID, module, difficulty, modifierID string, v Vitals, now time.Time) *RunState {
	return &RunState{
		Active:     true,
		PilotID:    pilotID,
		Module:     module,
		Difficulty: difficulty,
		ModifierID: modifierID,
		Wave:       1,
		StartedAt:  now,
		HP:         v.HP,
		MaxHP:      v.MaxHP,
		Energy:     v.Energy,
		MaxEnergy:  v.MaxEnergy,
		Heat:       v.Heat,
		ScrapMult:  1,
	}
}

// RecordKill counts a kill for the run and the current wave.
func (rs *RunState) RecordKill() {
	rs.Kills++
	rs.WaveKills++
}

// ClearWave marks the current wave cleared. On an interval wave it sets the
// pending-upgrade flag; the caller rolls and stores the choices.
func (rs *RunState) ClearWave(interval int) bool {
	rs.WaveCleared = true
	if NeedsUpgrade(rs.Wave, interval) {
		rs.PendingUpgrade = true
	}
	return rs.PendingUpgrade
}

// Advance moves to the next wave. It is refused while the wave is in
// progress or an upgrade choice is pending.
func (rs *RunState) Advance() error {
	if !rs.Active {
		return ErrNotActive
	}
	if !rs.WaveCleared {
		return ErrWaveInProgress
	}
	if rs.PendingUpgrade {
		return ErrUpgradePending
	}
	rs.Wave++
	rs.WaveKills = 0
	rs.WaveCleared = false
	return nil
}

// Survival returns how long the run has lasted at now.
func (rs *RunState) Survival(now time.Time) time.Duration {
	if rs.StartedAt.IsZero() || now.Before(rs.StartedAt) {
		return 0
	}
	return now.Sub(rs.StartedAt)
}

// Clone returns a deep copy.
func (rs *RunState) Clone() *RunState {
	if rs == nil {
		return nil
	}
	c := *rs
	c.Upgrades = append([]string(nil), rs.Upgrades...)
	c.Choices = append([]string(nil), rs.Choices...)
	return &c
}

// NeedsUpgrade reports whether clearing a wave requires an upgrade choice.
func NeedsUpgrade(wave, interval int) bool {
	return interval > 0 && wave > 0 && wave%interval == 0
}

// Score computes the endless score. It is never stored so it always agrees
// with the current wave, kills and elapsed time.
func Score(wave, kills int, survival time.Duration, sc config.ScoreConfig) int {
	minutes := int(math.Floor(survival.Minutes()))
	return wave*sc.PerWave + kills*sc.PerKill + minutes*sc.TimeBonusPerMinute
}
