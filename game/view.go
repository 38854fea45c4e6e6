package game

import (
	"maps"
	"slices"

	"github.com/pthm-cable/scrapline/components"
)

// View is a read-only projection of the session for presentation. It shares
// no memory with the session.
type View struct {
	Mode    string
	State   string
	ClockMs int64

	Player    components.Player
	Enemies   []EnemySnapshot
	Abilities []string
	Items     map[string]int
	Log       []string

	Stage        int
	StageCleared bool
	Scrap        int

	Wave           int
	Kills          int
	Score          int
	PendingUpgrade bool
	Choices        []string
	Modifier       string

	Level             int
	Lives             int
	AvailablePoints   int
	AchievementsCount int
}

// View builds a projection of the current session state.
func (s *Session) View() View {
	v := View{
		Mode:              s.Mode(),
		State:             StateIdle,
		Level:             s.doc.Profile.Level,
		Lives:             s.doc.Lives,
		AvailablePoints:   s.doc.Talents.AvailablePoints,
		AchievementsCount: len(s.doc.Achievements),
	}
	if m := s.doc.CurrentDailyModifier; m != nil {
		v.Modifier = m.ID
	}
	if s.battle != nil {
		v.State = s.battle.State()
		v.ClockMs = s.battle.ClockMs()
		v.Player = s.battle.Player()
		v.Enemies = s.battle.Enemies()
		v.Abilities = slices.Clone(s.battle.Abilities())
		v.Items = maps.Clone(s.battle.Items())
		v.Log = s.battle.Log()
	}
	switch v.Mode {
	case ModeStory:
		run := s.doc.RunState
		v.Stage = run.Stage
		v.StageCleared = run.StageCleared
		v.Scrap = run.Scrap
	case ModeEndless:
		rs := s.doc.EndlessState
		v.Wave = rs.Wave
		v.Kills = rs.Kills
		v.Scrap = rs.Scrap
		v.Score = s.CalculateEndlessScore()
		v.PendingUpgrade = rs.PendingUpgrade
		v.Choices = slices.Clone(rs.Choices)
		v.Modifier = rs.ModifierID
	}
	return v
}
