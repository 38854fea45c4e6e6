package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/scrapline/systems"
)

// PerfCollector times combat ticks and their phases over the last N ticks.
// Each phase keeps its own ring aligned with the tick ring, so a phase that
// did not run on a tick counts as zero for it.
type PerfCollector struct {
	now    func() time.Time
	ticks  []time.Duration
	phases map[string][]time.Duration
	next   int
	filled int

	tickStart  time.Time
	phase      string
	phaseStart time.Time
	current    map[string]time.Duration
}

// NewPerfCollector returns a collector averaging over window ticks.
func NewPerfCollector(window int) *PerfCollector {
	return newPerfCollector(window, time.Now)
}

func newPerfCollector(window int, now func() time.Time) *PerfCollector {
	if window < 1 {
		window = 50
	}
	return &PerfCollector{
		now:     now,
		ticks:   make([]time.Duration, window),
		phases:  make(map[string][]time.Duration),
		current: make(map[string]time.Duration),
	}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.phase = ""
	clear(p.current)
}

// StartPhase closes the running phase and starts timing the next one.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	p.closePhase(now)
	p.phase, p.phaseStart = phase, now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.current[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the tick and stores it in the window.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.phase = ""

	p.ticks[p.next] = now.Sub(p.tickStart)
	for id := range p.current {
		if _, ok := p.phases[id]; !ok {
			p.phases[id] = make([]time.Duration, len(p.ticks))
		}
	}
	for id, ring := range p.phases {
		ring[p.next] = p.current[id]
	}
	p.next = (p.next + 1) % len(p.ticks)
	p.filled = min(p.filled+1, len(p.ticks))
}

// PerfStats summarizes the window.
type PerfStats struct {
	AvgTick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64
	PhasePct       map[string]float64 // Share of tick time, 0-100
}

// Stats summarizes the ticks currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	ps := PerfStats{PhasePct: make(map[string]float64)}
	if p.filled == 0 {
		return ps
	}

	var total time.Duration
	for _, d := range p.ticks[:p.filled] {
		total += d
		ps.MaxTick = max(ps.MaxTick, d)
	}
	ps.AvgTick = total / time.Duration(p.filled)
	if total <= 0 {
		return ps
	}
	ps.TicksPerSecond = float64(time.Second) / float64(ps.AvgTick)

	for id, ring := range p.phases {
		var sum time.Duration
		for _, d := range ring[:p.filled] {
			sum += d
		}
		ps.PhasePct[id] = float64(sum) / float64(total) * 100
	}
	return ps
}

// LogStats logs tick timing.
func (s PerfStats) LogStats() {
	slog.Info("perf",
		"avg_tick_us", s.AvgTick.Microseconds(),
		"max_tick_us", s.MaxTick.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	)
}

// PerfRow is one perf.csv row.
type PerfRow struct {
	WindowEndMs     int64   `csv:"window_end_ms"`
	AvgTickUS       int64   `csv:"avg_tick_us"`
	MaxTickUS       int64   `csv:"max_tick_us"`
	TicksPerSec     float64 `csv:"ticks_per_sec"`
	PlayerActionPct float64 `csv:"player_action_pct"`
	CleanupPct      float64 `csv:"cleanup_pct"`
	StatusesPct     float64 `csv:"statuses_pct"`
	RegenPct        float64 `csv:"regen_pct"`
	EnemiesPct      float64 `csv:"enemies_pct"`
	WaveCheckPct    float64 `csv:"wave_check_pct"`
	TelemetryPct    float64 `csv:"telemetry_pct"`
}

// Row flattens the stats for perf.csv.
func (s PerfStats) Row(windowEndMs int64) PerfRow {
	return PerfRow{
		WindowEndMs:     windowEndMs,
		AvgTickUS:       s.AvgTick.Microseconds(),
		MaxTickUS:       s.MaxTick.Microseconds(),
		TicksPerSec:     s.TicksPerSecond,
		PlayerActionPct: s.PhasePct[systems.PhasePlayerAction],
		CleanupPct:      s.PhasePct[systems.PhaseCleanup],
		StatusesPct:     s.PhasePct[systems.PhaseStatuses],
		RegenPct:        s.PhasePct[systems.PhaseRegen],
		EnemiesPct:      s.PhasePct[systems.PhaseEnemies],
		WaveCheckPct:    s.PhasePct[systems.PhaseWaveCheck],
		TelemetryPct:    s.PhasePct[systems.PhaseTelemetry],
	}
}
