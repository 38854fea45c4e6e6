// Package game ties the combat battle, story and endless progression,
// talents, achievements and persistence into a Session driven by a Runner.
package game

import (
	"errors"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/pthm-cable/scrapline/achievements"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/endless"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/rng"
	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/systems"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// Game modes.
const (
	ModeNone    = ""
	ModeStory   = "story"
	ModeEndless = "endless"
)

// Session-level rejection reasons.
var (
	ErrBattleActive    = errors.New("another battle is in progress")
	ErrRunActive       = errors.New("story run already active")
	ErrNoRun           = errors.New("no story run active")
	ErrNoLives         = errors.New("no lives left")
	ErrUnknownPilot    = errors.New("unknown pilot")
	ErrStageInProgress = errors.New("stage still in progress")
	ErrUnknownShopItem = errors.New("unknown shop item")
	ErrNotEnoughScrap  = errors.New("not enough scrap")
	ErrUnknownReplay   = errors.New("unknown replay")
	ErrNoBattle        = errors.New("no battle in progress")
)

// MaxHPFunc computes a combatant's max HP from pilot, module and bonuses.
type MaxHPFunc func(pilot content.Pilot, module content.Module, bonuses talent.Bonuses) float64

// DefaultMaxHP is base HP plus module and flat bonuses, scaled by the
// percentage bonus.
func DefaultMaxHP(pilot content.Pilot, module content.Module, bonuses talent.Bonuses) float64 {
	flat := pilot.BaseHP + module.HPBonus + bonuses.Get(talent.EffectMaxHPFlat)
	return math.Round(max(flat, 1) * (1 + bonuses.Get(talent.EffectMaxHPPct)))
}

// Options configure a Session. Config and Catalog are required.
type Options struct {
	Config        *config.Config
	Catalog       *content.Catalog
	Rand          rng.Source
	Now           func() time.Time
	WaveGenerator endless.WaveGenerator
	MaxHP         MaxHPFunc
	Achievements  []achievements.Definition

	// Telemetry output
	Output        *telemetry.OutputManager
	LogStats      bool
	StatsCallback func(telemetry.WindowStats)
}

// Session owns the save document and the battle in progress. It is not
// safe for concurrent use; a Runner serializes access.
type Session struct {
	cfg   *config.Config
	cat   *content.Catalog
	src   rng.Source
	now   func() time.Time
	gen   endless.WaveGenerator
	maxHP MaxHPFunc
	defs  []achievements.Definition

	doc    *save.Document
	battle *Battle

	recorder     *replay.Recorder
	tracker      *telemetry.RunTracker
	stageStartMs int64

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	phases        *systems.PhaseRegistry
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
}

// NewSession builds a session over a loaded document and resumes any run
// the document holds.
func NewSession(doc *save.Document, opts Options) *Session {
	s := &Session{
		cfg:           opts.Config,
		cat:           opts.Catalog,
		src:           opts.Rand,
		now:           opts.Now,
		gen:           opts.WaveGenerator,
		maxHP:         opts.MaxHP,
		defs:          opts.Achievements,
		tracker:       telemetry.NewRunTracker(),
		collector:     telemetry.NewCollector(opts.Config.Telemetry.StatsWindow),
		perf:          telemetry.NewPerfCollector(opts.Config.Telemetry.PerfCollectorWindow),
		phases:        systems.NewPhaseRegistry(),
		bookmarks:     telemetry.NewBookmarkDetector(10),
		output:        opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}
	if s.src == nil {
		s.src = rng.New(time.Now().UnixNano())
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.gen == nil {
		s.gen = endless.NewGenerator(s.cat, s.cfg.Endless)
	}
	if s.maxHP == nil {
		s.maxHP = DefaultMaxHP
	}
	if s.defs == nil {
		s.defs = achievements.Default
	}
	s.Restore(doc)
	return s
}

// Document returns the live document. Callers must not mutate it while the
// session is in use by another goroutine.
func (s *Session) Document() *save.Document {
	s.syncRun()
	s.doc.Profile.LastPlayed = s.now()
	return s.doc
}

// Restore replaces the session's document and resumes its runs. An active
// story run restarts its current stage; an active endless run restarts its
// current wave.
func (s *Session) Restore(doc *save.Document) {
	s.stopBattle()
	s.doc = doc
	s.RefreshDailyModifier()

	switch {
	case doc.RunState.Active:
		if err := s.resumeStory(); err != nil {
			slog.Warn("story_resume_failed", "error", err)
			doc.RunState = save.StoryRun{Items: make(map[string]int)}
			s.stopBattle()
		}
	case doc.EndlessState != nil && doc.EndlessState.Active:
		if err := s.resumeEndless(); err != nil {
			slog.Warn("endless_resume_failed", "error", err)
			doc.EndlessState = &endless.RunState{}
			s.stopBattle()
		}
	}
}

// Mode returns the mode of the battle in progress.
func (s *Session) Mode() string {
	switch {
	case s.doc.RunState.Active:
		return ModeStory
	case s.doc.EndlessState != nil && s.doc.EndlessState.Active:
		return ModeEndless
	}
	return ModeNone
}

// Running reports whether combat ticks advance anything.
func (s *Session) Running() bool {
	return s.battle != nil && s.battle.Running()
}

// QueueAbility queues an ability for the next tick.
func (s *Session) QueueAbility(id string) error {
	if s.battle == nil {
		return ErrNoBattle
	}
	return s.battle.QueueAbility(id)
}

// QueueConsumable queues a consumable for the next tick.
func (s *Session) QueueConsumable(id string) error {
	if s.battle == nil {
		return ErrNoBattle
	}
	return s.battle.QueueConsumable(id)
}

// Tick advances combat one tick and folds its events into stats,
// progression and telemetry. Wave clears and defeats are resolved before it
// returns.
func (s *Session) Tick() TickResult {
	if !s.Running() {
		state := StateIdle
		if s.battle != nil {
			state = s.battle.State()
		}
		return TickResult{State: state}
	}

	s.perf.StartTick()
	res := s.battle.Tick()

	s.perf.StartPhase(systems.PhaseTelemetry)
	s.observe(res)
	s.flushTelemetry()
	s.perf.EndTick()

	mode := s.Mode()
	switch {
	case res.Defeated && mode == ModeStory:
		if _, err := s.EndRun(false); err != nil {
			slog.Error("end_run_failed", "error", err)
		}
	case res.Defeated && mode == ModeEndless:
		if _, err := s.EndEndlessRun(); err != nil {
			slog.Error("end_endless_failed", "error", err)
		}
	case res.WaveCleared && mode == ModeStory:
		s.onStageCleared(res.ClockMs)
	case res.WaveCleared && mode == ModeEndless:
		s.onEndlessWaveCleared()
	}
	return res
}

// observe folds tick events into the lifetime stats, run tracker, window
// collector and replay recorder.
func (s *Session) observe(res TickResult) {
	critPending := false
	for _, ev := range res.Events {
		s.observeEvent(ev)
		switch ev.Type {
		case telemetry.EventAbility:
			s.RecordAbilityUsage(ev.Ref)
			critPending = ev.Crit
		case telemetry.EventConsumable:
			s.RecordItemUsage(ev.Ref)
		case telemetry.EventDamageDealt:
			s.RecordDamageDealt(ev.Amount, critPending)
			critPending = false
		case telemetry.EventDamageTaken:
			s.RecordDamageTaken(ev.Amount)
		case telemetry.EventKill:
			s.RecordEnemyKill(ev.Ref, ev.Boss)
			s.onKill(ev)
		}
	}
	s.doc.Stats.RecordCombatTime(int64(s.cfg.Combat.TickMs))
	if s.recorder != nil {
		for _, a := range res.Actions {
			s.recorder.Add(res.ClockMs, a.Actor, a.Type, a.Result)
		}
	}
}

func (s *Session) observeEvent(ev telemetry.Event) {
	s.tracker.Observe(ev)
	s.collector.Record(ev)
}

func (s *Session) onKill(ev telemetry.Event) {
	s.doc.Codex.MarkKilled(ev.Ref, s.now())
	s.awardXP(s.cfg.Progression.XPPerKill)

	mult := 1 + s.battle.Bonuses().Get(talent.EffectScrapPct)
	switch s.Mode() {
	case ModeStory:
		scrap := int(math.Round(float64(ev.Scrap) * mult))
		s.doc.RunState.Scrap += scrap
		s.doc.Stats.RecordScrap(scrap)
	case ModeEndless:
		rs := s.doc.EndlessState
		rs.RecordKill()
		scrap := int(math.Round(float64(ev.Scrap) * mult * rs.ScrapMult))
		rs.Scrap += scrap
		s.doc.Stats.RecordScrap(scrap)
	}
}

// awardXP adds profile XP; each level gained awards talent points.
func (s *Session) awardXP(xp int) {
	levels := s.doc.Profile.AddXP(xp, s.cfg.Progression.XPPerLevel)
	if levels == 0 {
		return
	}
	s.AwardPilotPoints(levels * s.cfg.Progression.PointsPerLevel)
	slog.Info("level_up", "level", s.doc.Profile.Level, "gained", levels)
}

// registerSpawned records freshly spawned enemies with the tracker and codex.
func (s *Session) registerSpawned(spawned []EnemySnapshot) {
	now := s.now()
	for _, e := range spawned {
		s.tracker.Register(e.ID, e.Template, s.battle.ClockMs())
		s.doc.Codex.MarkSeen(e.Template, now)
	}
}

// bonusesFor sums talents, synergies, the module and extra effects.
func (s *Session) bonusesFor(pilot string, module content.Module, extra []talent.Effect) talent.Bonuses {
	b := make(talent.Bonuses)
	maps.Copy(b, s.doc.Talents.TotalBonuses(pilot, s.cat.TalentTree(pilot), s.cat.SynergiesFor(pilot)))
	for _, e := range extra {
		b[e.Type] += e.Value
	}
	if module.DamageBonus != 0 {
		b[talent.EffectDamageFlat] += module.DamageBonus
	}
	return b
}

// newBattle replaces the battle and resets per-run trackers.
func (s *Session) newBattle(lo Loadout) {
	s.battle = NewBattle(s.cfg.Combat, s.cat, s.src, lo)
	s.battle.SetPerf(s.perf)
	s.tracker.Reset()
	s.collector.Reset(0)
}

func (s *Session) stopBattle() {
	if s.battle != nil {
		s.battle.Reset()
	}
	s.battle = nil
	s.recorder = nil
}

// syncRun copies the combatant's vitals back into the active run state.
func (s *Session) syncRun() {
	if s.battle == nil {
		return
	}
	p := s.battle.Player()
	switch s.Mode() {
	case ModeStory:
		run := &s.doc.RunState
		run.HP, run.MaxHP, run.Energy, run.Heat = p.HP, p.MaxHP, p.Energy, p.Heat
	case ModeEndless:
		rs := s.doc.EndlessState
		rs.HP, rs.MaxHP, rs.Energy, rs.Heat = p.HP, p.MaxHP, p.Energy, p.Heat
	}
}

func (s *Session) writeRun(row telemetry.RunRow) {
	if s.output == nil {
		return
	}
	if err := s.output.WriteRun(row); err != nil {
		slog.Error("failed to write run", "error", err)
	}
}

// battleMs returns the battle clock, 0 without a battle.
func (s *Session) battleMs() int64 {
	if s.battle == nil {
		return 0
	}
	return s.battle.ClockMs()
}
