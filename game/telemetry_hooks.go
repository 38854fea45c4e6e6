package game

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/scrapline/telemetry"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Session) flushTelemetry() {
	nowMs := s.battle.ClockMs()
	if !s.collector.ShouldFlush(nowMs) {
		return
	}

	stats := s.collector.Flush(nowMs, s.sampleBattle())
	perfStats := s.perf.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
		s.logPhases(perfStats)
	}

	if s.output != nil {
		if err := s.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndMs); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if s.output != nil {
			if err := s.output.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
	}
}

// logPhases logs each tick phase's share of tick time by display name, in
// execution order.
func (s *Session) logPhases(ps telemetry.PerfStats) {
	attrs := make([]any, 0, 2*len(s.phases.All()))
	for _, info := range s.phases.All() {
		attrs = append(attrs, info.Name, math.Round(ps.PhasePct[info.ID]*10)/10)
	}
	slog.Debug("phase_breakdown", attrs...)
}

// sampleBattle collects the battle state recorded at window end.
func (s *Session) sampleBattle() telemetry.BattleSample {
	p := s.battle.Player()
	sample := telemetry.BattleSample{
		Wave:        s.currentWave(),
		PlayerHP:    p.HP,
		PlayerMaxHP: p.MaxHP,
	}
	for _, e := range s.battle.Enemies() {
		if e.MaxHP > 0 {
			sample.EnemyHPFracs = append(sample.EnemyHPFracs, e.HP/e.MaxHP)
		}
	}
	return sample
}

// currentWave returns the story stage or endless wave in progress.
func (s *Session) currentWave() int {
	switch s.Mode() {
	case ModeStory:
		return s.doc.RunState.Stage
	case ModeEndless:
		return s.doc.EndlessState.Wave
	}
	return 0
}
