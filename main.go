package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/game"
	"github.com/pthm-cable/scrapline/rng"
	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/save/storage"
	"github.com/pthm-cable/scrapline/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	contentPath := flag.String("content", "", "Path to content.yaml (empty = embedded catalog)")
	headless := flag.Bool("headless", false, "Run as fast as possible instead of in real time")
	mode := flag.String("mode", game.ModeStory, "Run mode: story or endless")
	pilot := flag.String("pilot", "vanguard", "Pilot id")
	module := flag.String("module", "", "Module id (empty = saved loadout)")
	backend := flag.String("backend", "", "Save backend: file or sqlite (empty = use config)")
	savePath := flag.String("save", "", "Save directory or sqlite file (empty = use config)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N combat ticks (0 = until the run ends)")
	runs := flag.Int("runs", 1, "Number of runs to play back to back")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Derived.LogLevel}))
	slog.SetDefault(logger)

	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	if *backend != "" {
		cfg.Save.Backend = *backend
	}
	if *savePath != "" {
		cfg.Save.Path = *savePath
	}

	cat := content.Default()
	if *contentPath != "" {
		var err error
		if cat, err = content.Load(*contentPath); err != nil {
			slog.Error("failed to load content", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, cat, options{
		headless: *headless,
		mode:     *mode,
		pilot:    *pilot,
		module:   *module,
		seed:     rngSeed,
		logStats: *logStats,
		output:   *outputDir,
		maxTicks: *maxTicks,
		tickMs:   cfg.Combat.TickMs,
		runs:     *runs,
	}); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	headless bool
	mode     string
	pilot    string
	module   string
	seed     int64
	logStats bool
	output   string
	maxTicks int
	tickMs   int
	runs     int
}

func run(cfg *config.Config, cat *content.Catalog, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := storage.Open(cfg.Save.Backend, cfg.Save.Path)
	if err != nil {
		return err
	}
	defer b.Close()

	mgr := save.NewManager(b, cfg, save.Options{Trees: cat.TalentTrees()})
	loaded := mgr.Load(ctx)
	if len(loaded.Reverted) > 0 {
		slog.Warn("save slices reverted to defaults", "slices", loaded.Reverted)
	}

	out, err := telemetry.NewOutputManager(opts.output)
	if err != nil {
		return err
	}
	if out != nil {
		defer out.Close()
		if err := out.WriteConfig(cfg); err != nil {
			slog.Error("failed to write config snapshot", "error", err)
		}
	}

	s := game.NewSession(loaded.Doc, game.Options{
		Config:   cfg,
		Catalog:  cat,
		Rand:     rng.New(opts.seed),
		Output:   out,
		LogStats: opts.logStats,
	})

	slog.Info("starting",
		"seed", opts.seed,
		"mode", opts.mode,
		"pilot", opts.pilot,
		"headless", opts.headless,
		"save_found", loaded.Found,
		"migrated", loaded.Migrated,
	)

	if opts.headless {
		err = playHeadless(ctx, s, opts)
	} else {
		err = playRealtime(ctx, s, mgr, opts)
	}
	if err != nil {
		return err
	}
	if err := mgr.Save(context.WithoutCancel(ctx), s.Document()); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	if out != nil {
		if err := out.WriteLeaderboard(s.Document().Leaderboard); err != nil {
			slog.Error("failed to write leaderboard", "error", err)
		}
	}
	slog.Info("stats", "game", s.Document().Stats, "leaderboard", s.Document().Leaderboard.Summary())
	return nil
}

// start begins a run unless the save already resumed one.
func start(s *game.Session, opts options) error {
	if s.Mode() != game.ModeNone {
		return nil
	}
	if opts.mode == game.ModeEndless {
		return s.StartEndlessRun(opts.pilot, opts.module)
	}
	return s.StartRun(opts.pilot, opts.module)
}

// finish ends a run that is still going when the loop stops.
func finish(s *game.Session) {
	switch s.Mode() {
	case game.ModeStory:
		if _, err := s.EndRun(false); err != nil {
			slog.Error("failed to end run", "error", err)
		}
	case game.ModeEndless:
		if _, err := s.EndEndlessRun(); err != nil {
			slog.Error("failed to end endless run", "error", err)
		}
	}
}

func playHeadless(ctx context.Context, s *game.Session, opts options) error {
	ap := game.NewAutopilot()
	ticks := 0
	for range max(opts.runs, 1) {
		if err := start(s, opts); err != nil {
			return err
		}
		for s.Mode() != game.ModeNone {
			if ctx.Err() != nil || (opts.maxTicks > 0 && ticks >= opts.maxTicks) {
				slog.Info("stopping", "tick", ticks)
				finish(s)
				return nil
			}
			s.Tick()
			ticks++
			if err := ap.Act(s); err != nil {
				slog.Debug("autopilot_action_rejected", "error", err)
			}
		}
	}
	return nil
}

func playRealtime(ctx context.Context, s *game.Session, saver game.Saver, opts options) error {
	if err := start(s, opts); err != nil {
		return err
	}
	r := game.NewRunner(s, game.RunnerOptions{
		Saver:     saver,
		Autopilot: game.NewAutopilot(),
	})
	go r.Run(ctx)

	status := time.NewTicker(5 * time.Second)
	defer status.Stop()
	for {
		select {
		case <-r.Done():
			return nil
		case <-status.C:
			v := r.View()
			slog.Info("status", "mode", v.Mode, "state", v.State, "stage", v.Stage, "wave", v.Wave, "hp", v.Player.HP, "enemies", len(v.Enemies))
			if v.Mode == game.ModeNone || (opts.maxTicks > 0 && v.ClockMs >= int64(opts.maxTicks*opts.tickMs)) {
				r.Stop()
				return nil
			}
		}
	}
}
