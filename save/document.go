// Package save persists the game document: every component's state under a
// versioned key, loaded slice by slice so one malformed slice never costs
// the rest of the save.
package save

import (
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/scrapline/achievements"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/endless"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// Document is the serializable union of all component state.
type Document struct {
	SchemaVersion          int                    `json:"schemaVersion"`
	Profile                Profile                `json:"profile"`
	Settings               Settings               `json:"settings"`
	RunState               StoryRun               `json:"runState"`
	Stats                  *telemetry.GameStats   `json:"stats"`
	Achievements           achievements.Unlocked  `json:"achievements"`
	Loadouts               Loadouts               `json:"loadouts"`
	Difficulty             string                 `json:"difficulty"`
	Lives                  int                    `json:"lives"`
	CraftedItems           map[string]int         `json:"craftedItems"`
	EndlessState           *endless.RunState      `json:"endlessState"`
	Leaderboard            *telemetry.Leaderboard `json:"leaderboard"`
	Codex                  Codex                  `json:"codex"`
	Replays                []replay.Record        `json:"replays"`
	Talents                *talent.State          `json:"talents"`
	CurrentDailyModifier   *content.Modifier      `json:"currentDailyModifier"`
	LastModifierUpdateDate string                 `json:"lastModifierUpdateDate"`
}

// Profile is the player's identity and level.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Level      int       `json:"level"`
	XP         int       `json:"xp"`
	CreatedAt  time.Time `json:"createdAt"`
	LastPlayed time.Time `json:"lastPlayed"`
}

// AddXP adds experience and returns the number of levels gained.
func (p *Profile) AddXP(xp, perLevel int) int {
	if xp <= 0 || perLevel <= 0 {
		return 0
	}
	if p.Level < 1 {
		p.Level = 1
	}
	p.XP += xp
	gained := 0
	for p.XP >= perLevel {
		p.XP -= perLevel
		p.Level++
		gained++
	}
	return gained
}

// Settings are player preferences that persist with the save.
type Settings struct {
	AutosaveIntervalSeconds int     `json:"autosaveIntervalSeconds"`
	CombatSpeed             float64 `json:"combatSpeed"`
	Autopilot               bool    `json:"autopilot"`
}

// AutosaveInterval returns the autosave period.
func (s Settings) AutosaveInterval() time.Duration {
	return time.Duration(s.AutosaveIntervalSeconds) * time.Second
}

// StoryRun is the story-mode run in progress.
type StoryRun struct {
	Active       bool            `json:"active"`
	PilotID      string          `json:"pilotId"`
	Module       string          `json:"module"`
	Stage        int             `json:"stage"`
	StageCleared bool            `json:"stageCleared"`
	Scrap        int             `json:"scrap"`
	HP           float64         `json:"hp"`
	MaxHP        float64         `json:"maxHp"`
	Energy       float64         `json:"energy"`
	Heat         float64         `json:"heat"`
	Items        map[string]int  `json:"items"` // Consumable id -> count
	Purchases    []string        `json:"purchases"`
	Bonuses      []talent.Effect `json:"bonuses"` // Shop upgrades bought this run
	StartedAt    time.Time       `json:"startedAt"`
}

// Loadouts records the selected pilot and each pilot's module.
type Loadouts struct {
	SelectedPilot string            `json:"selectedPilot"`
	Modules       map[string]string `json:"modules"`
}

// ModuleFor returns the module equipped by a pilot.
func (l Loadouts) ModuleFor(pilot string) string {
	return l.Modules[pilot]
}

// CodexEntry tracks one enemy type.
type CodexEntry struct {
	Seen      int       `json:"seen"`
	Killed    int       `json:"killed"`
	FirstSeen time.Time `json:"firstSeen"`
}

// Codex maps enemy template id to its entry.
type Codex map[string]*CodexEntry

// MarkSeen records an encounter.
func (c Codex) MarkSeen(template string, now time.Time) {
	e := c[template]
	if e == nil {
		e = &CodexEntry{FirstSeen: now}
		c[template] = e
	}
	e.Seen++
}

// MarkKilled records a kill.
func (c Codex) MarkKilled(template string, now time.Time) {
	e := c[template]
	if e == nil {
		e = &CodexEntry{FirstSeen: now}
		c[template] = e
	}
	e.Killed++
}

// Discovered returns the number of enemy types encountered.
func (c Codex) Discovered() int {
	return len(c)
}

// NewDocument returns the default document for a fresh profile.
func NewDocument(cfg *config.Config, now time.Time) *Document {
	return &Document{
		SchemaVersion: cfg.Save.SchemaVersion,
		Profile: Profile{
			ID:         uuid.NewString(),
			Name:       "Pilot",
			Level:      1,
			CreatedAt:  now,
			LastPlayed: now,
		},
		Settings: Settings{
			AutosaveIntervalSeconds: cfg.Save.AutosaveSeconds,
			CombatSpeed:             1,
		},
		RunState:     StoryRun{Items: make(map[string]int)},
		Stats:        telemetry.NewGameStats(),
		Achievements: achievements.Unlocked{},
		Loadouts:     Loadouts{Modules: make(map[string]string)},
		Difficulty:   defaultDifficulty(cfg),
		Lives:        cfg.Story.Lives,
		CraftedItems: make(map[string]int),
		EndlessState: &endless.RunState{},
		Leaderboard:  telemetry.NewLeaderboard(cfg.Leaderboard.Size),
		Codex:        Codex{},
		Replays:      []replay.Record{},
		Talents:      talent.NewState(),
	}
}

func defaultDifficulty(cfg *config.Config) string {
	if _, ok := cfg.Derived.DifficultyIndex["normal"]; ok {
		return "normal"
	}
	return cfg.Difficulties[0].ID
}
