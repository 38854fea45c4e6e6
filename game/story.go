package game

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pthm-cable/scrapline/endless"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/telemetry"
)

// StartRun starts a story run at stage 1. An empty module uses the pilot's
// saved loadout.
func (s *Session) StartRun(pilotID, moduleID string) error {
	if s.doc.RunState.Active {
		return ErrRunActive
	}
	if s.battle != nil {
		return ErrBattleActive
	}
	if s.doc.Lives <= 0 {
		return ErrNoLives
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

	maxHP := s.maxHP(pilot, module, s.bonusesFor(pilotID, module, nil))
	s.doc.RunState = save.StoryRun{
		Active:    true,
		PilotID:   pilotID,
		Module:    module.ID,
		Stage:     1,
		Scrap:     s.cfg.Story.StartingScrap,
		HP:        maxHP,
		MaxHP:     maxHP,
		Energy:    pilot.MaxEnergy,
		Items:     make(map[string]int),
		StartedAt: s.now(),
	}
	s.doc.Stats.RecordRunStart(pilotID)

	if err := s.resumeStory(); err != nil {
		s.doc.RunState = save.StoryRun{Items: make(map[string]int)}
		s.stopBattle()
		return err
	}
	slog.Info("run_started", "pilot", pilotID, "module", module.ID, "difficulty", s.doc.Difficulty)
	return nil
}

// resumeStory builds the battle for the active run and spawns its stage
// unless the stage is already cleared.
func (s *Session) resumeStory() error {
	run := &s.doc.RunState
	pilot, ok := s.cat.Pilot(run.PilotID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPilot, run.PilotID)
	}
	if run.Items == nil {
		run.Items = make(map[string]int)
	}
	s.newBattle(s.storyLoadout())
	s.recorder = replay.NewRecorder(replay.Meta{
		PilotID:    pilot.ID,
		PilotName:  pilot.Name,
		Module:     run.Module,
		Stage:      run.Stage,
		Difficulty: s.doc.Difficulty,
	}, s.now())
	if run.StageCleared {
		return nil
	}
	return s.spawnStage()
}

func (s *Session) storyLoadout() Loadout {
	run := &s.doc.RunState
	pilot, _ := s.cat.Pilot(run.PilotID)
	module := s.cat.Module(run.Module)
	return Loadout{
		Pilot:   pilot,
		HP:      run.HP,
		MaxHP:   run.MaxHP,
		Energy:  run.Energy,
		Heat:    run.Heat,
		Bonuses: s.bonusesFor(run.PilotID, module, run.Bonuses),
		Items:   run.Items,
	}
}

func (s *Session) spawnStage() error {
	run := &s.doc.RunState
	req := endless.WaveRequest{
		Wave:       run.Stage,
		Boss:       endless.IsBossWave(run.Stage, s.cfg.Story.BossStageEvery),
		Difficulty: s.cfg.Difficulty(s.doc.Difficulty),
	}
	spawned, err := s.battle.SpawnWave(s.gen(req, s.src))
	if err != nil {
		return fmt.Errorf("spawn stage %d: %w", run.Stage, err)
	}
	s.registerSpawned(spawned)
	s.stageStartMs = s.battle.ClockMs()
	s.doc.Stats.RecordStageAttempt(run.Stage)
	if s.recorder != nil {
		s.recorder.SetStage(run.Stage)
	}
	slog.Debug("stage_spawned", "stage", run.Stage, "enemies", len(spawned), "boss", req.Boss)
	return nil
}

// onStageCleared awards the stage and finishes the run after the last one.
func (s *Session) onStageCleared(clockMs int64) {
	run := &s.doc.RunState
	s.syncRun()
	run.StageCleared = true
	s.doc.Stats.RecordStageClear(run.PilotID, run.Stage, clockMs-s.stageStartMs)
	s.AwardPilotPoints(s.cfg.Story.StagePoints)
	s.awardXP(s.cfg.Progression.XPPerStage)
	slog.Info("stage_cleared", "stage", run.Stage, "scrap", run.Scrap, "hp", run.HP)

	if run.Stage >= s.cfg.Story.Stages {
		if _, err := s.EndRun(true); err != nil {
			slog.Error("end_run_failed", "error", err)
		}
		return
	}
	s.CheckAchievements()
}

// AdvanceStage moves a cleared run to its next stage.
func (s *Session) AdvanceStage() error {
	run := &s.doc.RunState
	if !run.Active {
		return ErrNoRun
	}
	if !run.StageCleared {
		return ErrStageInProgress
	}
	run.Stage++
	run.StageCleared = false
	if s.battle == nil {
		return s.resumeStory()
	}
	return s.spawnStage()
}

// PurchaseUpgrade buys a shop item with run scrap between stages.
func (s *Session) PurchaseUpgrade(itemID string) error {
	run := &s.doc.RunState
	if !run.Active {
		return ErrNoRun
	}
	if !run.StageCleared {
		return ErrStageInProgress
	}
	item, ok := s.cat.ShopItem(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownShopItem, itemID)
	}
	if run.Scrap < item.Cost {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughScrap, item.Cost, run.Scrap)
	}

	s.syncRun()
	run.Scrap -= item.Cost
	s.doc.Stats.RecordScrap(-item.Cost)
	run.Purchases = append(run.Purchases, itemID)
	s.doc.CraftedItems[itemID]++
	if item.Consumable != "" {
		run.Items[item.Consumable]++
	}
	if len(item.Effects) > 0 {
		run.Bonuses = append(run.Bonuses, item.Effects...)
		s.refreshStoryMaxHP()
	}
	if s.battle != nil {
		s.battle.SetLoadout(s.storyLoadout())
	}
	slog.Info("item_purchased", "item", itemID, "cost", item.Cost, "scrap", run.Scrap)
	return nil
}

// refreshStoryMaxHP recomputes max HP after bonuses change. Current HP moves
// by the same delta.
func (s *Session) refreshStoryMaxHP() {
	run := &s.doc.RunState
	pilot, _ := s.cat.Pilot(run.PilotID)
	module := s.cat.Module(run.Module)
	newMax := s.maxHP(pilot, module, s.bonusesFor(run.PilotID, module, run.Bonuses))
	run.HP = max(1, min(newMax, run.HP+newMax-run.MaxHP))
	run.MaxHP = newMax
}

// EndRun finishes the story run. A defeat costs a life; losing the last
// life resets the profile and lifetime stats but keeps talents.
func (s *Session) EndRun(victory bool) (replay.Record, error) {
	run := s.doc.RunState
	if !run.Active {
		return replay.Record{}, ErrNoRun
	}
	outcome := replay.OutcomeDefeat
	if victory {
		outcome = replay.OutcomeVictory
	}

	durationMs := s.battleMs()
	totals := s.tracker.Totals()
	var rec replay.Record
	if s.recorder != nil {
		rec = s.recorder.Finish(outcome, durationMs, replay.FinalStats{
			DamageDealt:   totals.DamageDealt,
			DamageTaken:   totals.DamageTaken,
			EnemiesKilled: totals.EnemiesKilled,
			ItemsUsed:     totals.ItemsUsed,
			TurnsElapsed:  totals.TurnsElapsed,
			CriticalHits:  totals.CriticalHits,
		})
		s.doc.Replays = replay.Append(s.doc.Replays, rec, s.cfg.Save.MaxReplays)
	}
	s.doc.Stats.RecordRunEnd(run.PilotID, victory)
	s.writeRun(telemetry.RunRow{
		Mode:        ModeStory,
		PilotID:     run.PilotID,
		Difficulty:  s.doc.Difficulty,
		Outcome:     outcome,
		Reached:     run.Stage,
		DurationMs:  durationMs,
		DamageDealt: totals.DamageDealt,
		DamageTaken: totals.DamageTaken,
		Kills:       totals.EnemiesKilled,
		Turns:       totals.TurnsElapsed,
		Crits:       totals.CriticalHits,
	})

	s.stopBattle()
	s.doc.RunState = save.StoryRun{Items: make(map[string]int)}
	if !victory {
		s.loseLife()
	}
	s.CheckAchievements()
	slog.Info("run_ended",
		"pilot", run.PilotID,
		"outcome", outcome,
		"stage", run.Stage,
		"duration", replay.FormatDuration(durationMs),
		"lives", s.doc.Lives,
	)
	return rec, nil
}

func (s *Session) loseLife() {
	s.doc.Lives--
	if s.doc.Lives > 0 {
		return
	}
	now := s.now()
	old := s.doc.Profile
	s.doc.Profile = save.Profile{ID: old.ID, Name: old.Name, Level: 1, CreatedAt: now, LastPlayed: now}
	s.doc.Stats.Reset()
	s.doc.Lives = s.cfg.Story.Lives
	slog.Warn("permadeath", "profile", old.ID, "level_lost", old.Level, "talent_points_kept", s.doc.Talents.TotalPointsEarned)
}

// ShopItems lists shop ids affordable with the run's scrap, cheapest first.
func (s *Session) ShopItems() []string {
	run := &s.doc.RunState
	var ids []string
	for _, item := range s.cat.Shop {
		if item.Cost <= run.Scrap {
			ids = append(ids, item.ID)
		}
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		ia, _ := s.cat.ShopItem(a)
		ib, _ := s.cat.ShopItem(b)
		return ia.Cost - ib.Cost
	})
	return ids
}
