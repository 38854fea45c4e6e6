package game

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/endless"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// EndlessResult reports a finished endless run.
type EndlessResult struct {
	Entry    telemetry.LeaderboardEntry
	Position int // 1-based leaderboard position, 0 when it did not place
	Rank     int // Rank the score holds on the board
}

// RefreshDailyModifier rolls the daily modifier when the calendar date has
// changed since the last roll, and returns the current one.
func (s *Session) RefreshDailyModifier() content.Modifier {
	now := s.now()
	date := endless.DateKey(now)
	if s.doc.CurrentDailyModifier != nil && s.doc.LastModifierUpdateDate == date {
		return *s.doc.CurrentDailyModifier
	}
	m := endless.ModifierForDate(now, s.cat)
	s.doc.CurrentDailyModifier = &m
	s.doc.LastModifierUpdateDate = date
	slog.Info("daily_modifier", "date", date, "modifier", m.ID)
	return m
}

// StartEndlessRun starts an endless run at wave 1 under today's modifier.
func (s *Session) StartEndlessRun(pilotID, moduleID string) error {
	if s.doc.EndlessState != nil && s.doc.EndlessState.Active {
		return endless.ErrAlreadyActive
	}
	if s.battle != nil {
		return ErrBattleActive
	}
	pilot, ok := s.cat.Pilot(pilotID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPilot, pilotID)
	}
	if moduleID == "" {
		moduleID = s.doc.Loadouts.ModuleFor(pilotID)
	}
	module := s.cat.Module(moduleID)
	s.doc.Loadouts.SelectedPilot = pilotID
	s.doc.Loadouts.Modules[pilotID] = module.ID

	mod := s.RefreshDailyModifier()
	maxHP := s.maxHP(pilot, module, s.bonusesFor(pilotID, module, nil))
	s.doc.EndlessState = endless.NewRun(pilotID, module.ID, s.doc.Difficulty, mod.ID, endless.Vitals{
		HP:        maxHP,
		MaxHP:     maxHP,
		Energy:    pilot.MaxEnergy,
		MaxEnergy: pilot.MaxEnergy,
	}, s.now())

	s.newBattle(s.endlessLoadout())
	if err := s.spawnEndlessWave(true); err != nil {
		s.doc.EndlessState = &endless.RunState{}
		s.stopBattle()
		return err
	}
	slog.Info("endless_started", "pilot", pilotID, "module", module.ID, "modifier", mod.ID)
	return nil
}

func (s *Session) resumeEndless() error {
	rs := s.doc.EndlessState
	if _, ok := s.cat.Pilot(rs.PilotID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPilot, rs.PilotID)
	}
	s.newBattle(s.endlessLoadout())
	if rs.WaveCleared {
		return nil
	}
	return s.spawnEndlessWave(false)
}

// endlessLoadout folds the run's upgrades into the talent bonuses.
func (s *Session) endlessLoadout() Loadout {
	rs := s.doc.EndlessState
	pilot, _ := s.cat.Pilot(rs.PilotID)
	bonuses := s.bonusesFor(rs.PilotID, s.cat.Module(rs.Module), nil)
	bonuses[talent.EffectDamagePct] += rs.DamageBonus
	bonuses[talent.EffectCooldownPct] += min(rs.CooldownReduction, s.cfg.Endless.MaxCooldownReduction)
	return Loadout{
		Pilot:   pilot,
		HP:      rs.HP,
		MaxHP:   rs.MaxHP,
		Energy:  rs.Energy,
		Heat:    rs.Heat,
		Bonuses: bonuses,
	}
}

// modifier returns the run's modifier by id, falling back to today's.
func (s *Session) modifier() content.Modifier {
	id := s.doc.EndlessState.ModifierID
	if m := s.doc.CurrentDailyModifier; m != nil && m.ID == id {
		return *m
	}
	if m, ok := s.cat.Modifier(id); ok {
		return m
	}
	return endless.ModifierForDate(s.now(), s.cat)
}

// spawnEndlessWave spawns the current wave. A hazard may strike the player
// as it spawns.
func (s *Session) spawnEndlessWave(hazards bool) error {
	rs := s.doc.EndlessState
	mod := s.modifier()
	req := endless.WaveRequest{
		Wave:       rs.Wave,
		Boss:       endless.IsBossWave(rs.Wave, s.cfg.Endless.BossEvery),
		Difficulty: s.cfg.Difficulty(rs.Difficulty),
		Modifier:   mod,
	}
	spawned, err := s.battle.SpawnWave(s.gen(req, s.src))
	if err != nil {
		return fmt.Errorf("spawn wave %d: %w", rs.Wave, err)
	}
	s.registerSpawned(spawned)
	slog.Debug("wave_spawned", "wave", rs.Wave, "enemies", len(spawned), "boss", req.Boss)

	if !hazards {
		return nil
	}
	hz := endless.RollHazard(s.src, s.battle.Player().MaxHP, s.cfg.Endless, mod)
	if !hz.Struck {
		return nil
	}
	ev := s.battle.ApplyHazard(hz.Damage)
	s.observeEvent(ev)
	s.RecordDamageTaken(ev.Amount)
	s.RecordHazardSurvival()
	rs.HazardsSurvived++
	return nil
}

func (s *Session) onEndlessWaveCleared() {
	rs := s.doc.EndlessState
	s.syncRun()
	if rs.ClearWave(s.cfg.Endless.UpgradeInterval) {
		rs.Choices = endless.RollChoices(s.src, s.cfg.Endless.UpgradeChoices, s.cat, s.cfg.Endless.RarityWeights)
		if len(rs.Choices) == 0 {
			rs.PendingUpgrade = false
		}
	}
	slog.Info("wave_cleared", "wave", rs.Wave, "kills", rs.Kills, "upgrade_pending", rs.PendingUpgrade, "choices", rs.Choices)
	s.CheckAchievements()
}

// AdvanceEndlessWave moves to the next wave. It is refused while the wave
// is in progress or an upgrade choice is pending.
func (s *Session) AdvanceEndlessWave() error {
	rs := s.doc.EndlessState
	if rs == nil {
		return endless.ErrNotActive
	}
	if err := rs.Advance(); err != nil {
		return err
	}
	if s.battle == nil {
		s.newBattle(s.endlessLoadout())
	}
	return s.spawnEndlessWave(true)
}

// ApplyEndlessUpgrade applies one of the offered upgrade choices.
func (s *Session) ApplyEndlessUpgrade(id string) error {
	rs := s.doc.EndlessState
	if rs == nil {
		return endless.ErrNotActive
	}
	s.syncRun()
	if err := endless.Choose(rs, id, s.cfg.Endless); err != nil {
		return err
	}
	s.doc.Stats.RecordUpgradeChosen()
	if s.battle != nil {
		s.battle.SetLoadout(s.endlessLoadout())
	}
	slog.Info("upgrade_chosen", "upgrade", id, "wave", rs.Wave)
	return nil
}

// CalculateEndlessScore scores the active endless run at the current time.
func (s *Session) CalculateEndlessScore() int {
	rs := s.doc.EndlessState
	if rs == nil || !rs.Active {
		return 0
	}
	return endless.Score(rs.Wave, rs.Kills, rs.Survival(s.now()), s.cfg.Score)
}

// EndEndlessRun finishes the endless run and records it on the leaderboard.
func (s *Session) EndEndlessRun() (EndlessResult, error) {
	rs := s.doc.EndlessState
	if rs == nil || !rs.Active {
		return EndlessResult{}, endless.ErrNotActive
	}
	now := s.now()
	score := s.CalculateEndlessScore()
	entry := telemetry.LeaderboardEntry{
		Wave:            rs.Wave,
		Kills:           rs.Kills,
		Score:           score,
		PilotID:         rs.PilotID,
		Difficulty:      rs.Difficulty,
		Date:            now,
		SurvivalSeconds: int(rs.Survival(now).Seconds()),
	}
	res := EndlessResult{Entry: entry}
	res.Position = s.doc.Leaderboard.Insert(entry)
	res.Rank = s.doc.Leaderboard.Rank(score)
	s.doc.Stats.RecordEndlessRun(rs.PilotID, rs.Wave, rs.Kills, score)

	totals := s.tracker.Totals()
	s.writeRun(telemetry.RunRow{
		Mode:        ModeEndless,
		PilotID:     rs.PilotID,
		Difficulty:  rs.Difficulty,
		Outcome:     "ENDED",
		Reached:     rs.Wave,
		Score:       score,
		DurationMs:  s.battleMs(),
		DamageDealt: totals.DamageDealt,
		DamageTaken: totals.DamageTaken,
		Kills:       rs.Kills,
		Turns:       totals.TurnsElapsed,
		Crits:       totals.CriticalHits,
	})
	if err := s.output.WriteLeaderboard(s.doc.Leaderboard); err != nil {
		slog.Error("failed to write leaderboard", "error", err)
	}

	rs.Active = false
	s.stopBattle()
	s.CheckAchievements()
	slog.Info("endless_ended",
		"pilot", entry.PilotID,
		"wave", entry.Wave,
		"kills", entry.Kills,
		"score", score,
		"position", res.Position,
	)
	return res, nil
}
