package game

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/scrapline/achievements"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// activePilot is the pilot lifetime stats are attributed to.
func (s *Session) activePilot() string {
	switch s.Mode() {
	case ModeStory:
		return s.doc.RunState.PilotID
	case ModeEndless:
		return s.doc.EndlessState.PilotID
	}
	return s.doc.Loadouts.SelectedPilot
}

// RecordDamageDealt records player damage against enemies.
func (s *Session) RecordDamageDealt(amount float64, crit bool) {
	s.doc.Stats.RecordDamageDealt(s.activePilot(), amount, crit)
}

// RecordDamageTaken records damage taken by the player.
func (s *Session) RecordDamageTaken(amount float64) {
	s.doc.Stats.RecordDamageTaken(amount)
}

// RecordEnemyKill records a kill by enemy template.
func (s *Session) RecordEnemyKill(template string, boss bool) {
	s.doc.Stats.RecordEnemyKill(s.activePilot(), template, boss)
}

// RecordHazardSurvival records a hazard the player lived through.
func (s *Session) RecordHazardSurvival() {
	s.doc.Stats.RecordHazardSurvival()
}

// RecordItemUsage records a consumable use.
func (s *Session) RecordItemUsage(id string) {
	s.doc.Stats.RecordItemUsage(id)
}

// RecordAbilityUsage records an ability use.
func (s *Session) RecordAbilityUsage(id string) {
	s.doc.Stats.RecordAbilityUsage(id)
}

// AwardPilotPoints grants talent points.
func (s *Session) AwardPilotPoints(n int) {
	if n <= 0 {
		return
	}
	s.doc.Talents.AwardPoints(n)
	slog.Debug("talent_points_awarded", "points", n, "available", s.doc.Talents.AvailablePoints)
}

// UnlockTalent buys one rank of a talent and returns the new rank.
func (s *Session) UnlockTalent(pilot, id string) (int, error) {
	before := s.talentMaxHP(pilot)
	rank, err := s.doc.Talents.Unlock(pilot, id, s.cat.TalentTree(pilot))
	if err != nil {
		slog.Debug("talent_rejected", "pilot", pilot, "talent", id, "error", err)
		return 0, err
	}
	s.doc.Stats.RecordTalentUnlock()
	s.refreshLoadout(pilot, before)
	s.CheckAchievements()
	return rank, nil
}

// ResetTalents refunds every rank a pilot bought and returns the refund.
func (s *Session) ResetTalents(pilot string) int {
	before := s.talentMaxHP(pilot)
	refund := s.doc.Talents.Reset(pilot)
	s.refreshLoadout(pilot, before)
	return refund
}

// SaveTalentPreset snapshots a pilot's ranks under a name.
func (s *Session) SaveTalentPreset(pilot, name string) talent.Preset {
	return s.doc.Talents.SavePreset(pilot, name, s.now())
}

// LoadTalentPreset replaces a pilot's ranks with a preset.
func (s *Session) LoadTalentPreset(pilot, presetID string) error {
	before := s.talentMaxHP(pilot)
	if err := s.doc.Talents.LoadPreset(pilot, presetID, s.cat.TalentTree(pilot)); err != nil {
		return err
	}
	s.refreshLoadout(pilot, before)
	return nil
}

// DeleteTalentPreset removes a preset.
func (s *Session) DeleteTalentPreset(pilot, presetID string) error {
	return s.doc.Talents.DeletePreset(pilot, presetID)
}

// talentMaxHP is the max HP the active run would start with under the
// pilot's current talents, 0 when the pilot is not in a run.
func (s *Session) talentMaxHP(pilot string) float64 {
	var module string
	var extra []talent.Effect
	switch s.Mode() {
	case ModeStory:
		module, extra = s.doc.RunState.Module, s.doc.RunState.Bonuses
	case ModeEndless:
		module = s.doc.EndlessState.Module
	default:
		return 0
	}
	if s.activePilot() != pilot {
		return 0
	}
	p, _ := s.cat.Pilot(pilot)
	m := s.cat.Module(module)
	return s.maxHP(p, m, s.bonusesFor(pilot, m, extra))
}

// refreshLoadout re-applies bonuses when the pilot in a run changed talents.
// Max HP and current HP shift by the change in talent-driven max HP, so
// HP from run upgrades is kept.
func (s *Session) refreshLoadout(pilot string, before float64) {
	if s.Mode() == ModeNone || s.activePilot() != pilot {
		return
	}
	s.syncRun()
	delta := s.talentMaxHP(pilot) - before
	switch s.Mode() {
	case ModeStory:
		run := &s.doc.RunState
		run.MaxHP, run.HP = shiftMaxHP(run.MaxHP, run.HP, delta)
		if s.battle != nil {
			s.battle.SetLoadout(s.storyLoadout())
		}
	case ModeEndless:
		rs := s.doc.EndlessState
		rs.MaxHP, rs.HP = shiftMaxHP(rs.MaxHP, rs.HP, delta)
		if s.battle != nil {
			s.battle.SetLoadout(s.endlessLoadout())
		}
	}
	if delta != 0 {
		slog.Debug("max_hp_changed", "pilot", pilot, "delta", delta)
	}
}

// shiftMaxHP moves max and current HP by delta. A living player never drops
// below 1 HP.
func shiftMaxHP(maxHP, hp, delta float64) (float64, float64) {
	if delta == 0 {
		return maxHP, hp
	}
	newMax := max(1, maxHP+delta)
	if hp <= 0 {
		return newMax, hp
	}
	return newMax, max(1, min(newMax, hp+delta))
}

// CheckAchievements evaluates and records achievements and returns the
// newly unlocked ones.
func (s *Session) CheckAchievements() []achievements.Definition {
	snap := achievements.Snapshot{
		Stats:             s.doc.Stats,
		Level:             s.doc.Profile.Level,
		TotalPointsEarned: s.doc.Talents.TotalPointsEarned,
		EnemiesDiscovered: s.doc.Codex.Discovered(),
		Lives:             s.doc.Lives,
	}
	for pilot, pt := range s.doc.Talents.Pilots {
		for _, rank := range pt.Unlocked {
			snap.TalentRanks += rank
		}
		snap.ActiveSynergies += len(s.doc.Talents.ActiveSynergies(pilot, s.cat.SynergiesFor(pilot)))
	}
	fresh := achievements.Evaluate(s.defs, snap, s.doc.Achievements)
	achievements.Record(s.doc.Achievements, fresh, s.now())
	return fresh
}

// Achievements lists the achievements a player may see.
func (s *Session) Achievements() []achievements.Definition {
	return achievements.Visible(s.defs, s.doc.Achievements)
}

// GetLeaderboard returns leaderboard entries matching a filter.
func (s *Session) GetLeaderboard(f telemetry.LeaderboardFilter) []telemetry.LeaderboardEntry {
	return s.doc.Leaderboard.Filter(f)
}

// ImportReplay validates and stores a shared replay.
func (s *Session) ImportReplay(raw []byte) (replay.Record, error) {
	rec, err := replay.Import(s.doc.Replays, raw, s.now())
	if err != nil {
		return replay.Record{}, err
	}
	s.doc.Replays = replay.Append(s.doc.Replays, rec, s.cfg.Save.MaxReplays)
	slog.Info("replay_imported", "id", rec.ID, "pilot", rec.PilotID, "actions", len(rec.Actions))
	return rec, nil
}

// ExportReplay serializes a stored replay.
func (s *Session) ExportReplay(id string) ([]byte, error) {
	rec, ok := replay.Find(s.doc.Replays, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReplay, id)
	}
	return replay.Export(rec)
}
