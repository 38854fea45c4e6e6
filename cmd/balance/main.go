// Command balance tunes the endless-mode scaling curve with CMA-ES so that
// an autopilot pilot dies close to a target wave.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
)

// evalRow is one line of balance_log.csv.
type evalRow struct {
	Eval         int     `csv:"eval"`
	Fitness      float64 `csv:"fitness"`
	MeanWave     float64 `csv:"mean_wave"`
	StdWave      float64 `csv:"std_wave"`
	HPGrowth     float64 `csv:"hp_growth"`
	DamageGrowth float64 `csv:"damage_growth"`
	CountGrowth  float64 `csv:"count_growth"`
	AffixGrowth  float64 `csv:"affix_growth"`
	HazardChance float64 `csv:"hazard_chance"`
	HazardDamage float64 `csv:"hazard_damage"`
}

func newEvalRow(eval int, fitness, mean, std float64, v []float64) *evalRow {
	return &evalRow{
		Eval:         eval,
		Fitness:      fitness,
		MeanWave:     clampWave(mean),
		StdWave:      std,
		HPGrowth:     v[0],
		DamageGrowth: v[1],
		CountGrowth:  v[2],
		AffixGrowth:  v[3],
		HazardChance: v[4],
		HazardDamage: v[5],
	}
}

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	contentPath := flag.String("content", "", "Content YAML file (empty = embedded catalog)")
	pilot := flag.String("pilot", "vanguard", "Pilot id flown by the autopilot")
	target := flag.Int("target-wave", 20, "Wave the autopilot should die on")
	maxTicks := flag.Int("max-ticks", 200000, "Maximum combat ticks per run (cap)")
	seeds := flag.Int("seeds", 4, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *outputDir == "" {
		fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("failed to create output directory", "error", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", "error", err)
	}
	cat := content.Default()
	if *contentPath != "" {
		if cat, err = content.Load(*contentPath); err != nil {
			fatal("failed to load content", "error", err)
		}
	}
	if _, ok := cat.Pilot(*pilot); !ok {
		fatal("unknown pilot", "pilot", *pilot)
	}

	params := NewParamVector(baseCfg.Endless)

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, baseCfg, cat, *pilot, *target, *maxTicks, evalSeeds)

	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	var rows []*evalRow
	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			clamped := params.Clamp(raw)
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			mean, std := evaluator.LastWaves()
			rows = append(rows, newEvalRow(evalCount, fitness, mean, std, clamped))

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fmt.Printf("Eval %d/%d: wave=%.1f±%.1f fitness=%.2f (best=%.2f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, mean, std, fitness, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES balance with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Pilot: %s, target wave: %d, seeds per evaluation: %d\n", *pilot, *target, *seeds)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}

	fmt.Printf("\nBalance complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.3f\n", bestFitness)

	logPath := filepath.Join(*outputDir, "balance_log.csv")
	if err := writeLog(logPath, rows); err != nil {
		slog.Error("failed to write log", "error", err)
	}

	if bestParams == nil {
		return
	}
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to reload config", "error", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}

func writeLog(path string, rows []*evalRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
