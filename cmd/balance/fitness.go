package main

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/game"
	"github.com/pthm-cable/scrapline/rng"
	"github.com/pthm-cable/scrapline/save"
)

// FitnessEvaluator plays headless autopilot endless runs and scores how
// close the reached wave lands to the target.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	catalog    *content.Catalog
	pilot      string
	target     float64
	maxTicks   int
	seeds      []int64

	mu       sync.Mutex
	lastRuns []runResult // results from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, cat *content.Catalog, pilot string, target, maxTicks int, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		baseConfig: baseCfg,
		catalog:    cat,
		pilot:      pilot,
		target:     float64(target),
		maxTicks:   maxTicks,
		seeds:      seeds,
	}
}

// runResult holds the outcome of a single endless run.
type runResult struct {
	wave    int
	kills   int
	score   int
	ticks   int
	timeout bool // still alive at maxTicks
}

// LastWaves returns the mean and standard deviation of waves reached in the
// most recent evaluation.
func (fe *FitnessEvaluator) LastWaves() (mean, std float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return waveStats(fe.lastRuns)
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the mean squared distance between reached and target wave,
// plus the spread across seeds so the curve stays predictable.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runEndless(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	fe.mu.Lock()
	fe.lastRuns = results
	fe.mu.Unlock()

	return fe.computeFitness(results)
}

func (fe *FitnessEvaluator) computeFitness(results []runResult) float64 {
	var sq float64
	for _, r := range results {
		d := float64(r.wave) - fe.target
		if r.timeout {
			// Survivors are at least this far past the target.
			d = max(d, 1)
		}
		sq += d * d
	}
	_, std := waveStats(results)
	return sq/float64(len(results)) + std
}

func waveStats(results []runResult) (mean, std float64) {
	if len(results) == 0 {
		return 0, 0
	}
	waves := make([]float64, len(results))
	for i, r := range results {
		waves[i] = float64(r.wave)
	}
	if len(waves) == 1 {
		return waves[0], 0
	}
	return stat.MeanStdDev(waves, nil)
}

// runEndless plays one autopilot endless run on a fresh profile.
func (fe *FitnessEvaluator) runEndless(cfg *config.Config, seed int64) runResult {
	start := time.Unix(0, 0).UTC()
	var ticks int
	now := func() time.Time {
		return start.Add(time.Duration(ticks) * cfg.Derived.TickDuration)
	}

	s := game.NewSession(save.NewDocument(cfg, start), game.Options{
		Config:  cfg,
		Catalog: fe.catalog,
		Rand:    rng.New(seed),
		Now:     now,
	})
	if err := s.StartEndlessRun(fe.pilot, ""); err != nil {
		return runResult{}
	}

	ap := game.NewAutopilot()
	for s.Mode() == game.ModeEndless && ticks < fe.maxTicks {
		s.Tick()
		ticks++
		_ = ap.Act(s)
	}

	r := runResult{ticks: ticks}
	if s.Mode() == game.ModeEndless {
		r.timeout = true
		if _, err := s.EndEndlessRun(); err != nil {
			return r
		}
	}
	if best, ok := s.Document().Leaderboard.Best(); ok {
		r.wave = best.Wave
		r.kills = best.Kills
		r.score = best.Score
	}
	return r
}

// copyConfig returns a copy of the base config. Maps and slices are shared
// and must be treated as read-only by sessions.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// clampWave guards log output against runs that never started.
func clampWave(w float64) float64 {
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	return w
}
