// Command savetool inspects and moves save data between backends.
//
// Usage:
//
//	savetool inspect [-backend file|sqlite] [-save path]
//	savetool export-leaderboard -out board.csv
//	savetool export-replay -id <replay-id> -out replay.json
//	savetool import-replay -in replay.json
//	savetool copy -to-backend sqlite -to saves/scrapline.db
//	savetool delete -key scrapline_save_v2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/save/sqlite"
	"github.com/pthm-cable/scrapline/save/storage"
)

var errUsage = errors.New("usage: savetool <inspect|export-leaderboard|export-replay|import-replay|copy|delete> [flags]")

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := run(context.Background(), os.Args[1:], os.Stdout, time.Now); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// target is the save a subcommand operates on.
type target struct {
	cfg     *config.Config
	backend save.Backend
	mgr     *save.Manager
}

func (t *target) Close() error {
	return t.backend.Close()
}

// commonFlags registers -config, -backend and -save on fs.
type commonFlags struct {
	config  *string
	backend *string
	path    *string
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:  fs.String("config", "", "Path to config.yaml (empty = use defaults)"),
		backend: fs.String("backend", "", "Save backend: file or sqlite (empty = use config)"),
		path:    fs.String("save", "", "Save directory or sqlite file (empty = use config)"),
	}
}

func (c commonFlags) open(now func() time.Time) (*target, error) {
	cfg, err := config.Load(*c.config)
	if err != nil {
		return nil, err
	}
	if *c.backend != "" {
		cfg.Save.Backend = *c.backend
	}
	if *c.path != "" {
		cfg.Save.Path = *c.path
	}
	b, err := storage.Open(cfg.Save.Backend, cfg.Save.Path)
	if err != nil {
		return nil, err
	}
	mgr := save.NewManager(b, cfg, save.Options{Trees: content.Default().TalentTrees(), Now: now})
	return &target{cfg: cfg, backend: b, mgr: mgr}, nil
}

func run(ctx context.Context, args []string, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := addCommon(fs)

	switch cmd {
	case "inspect":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withTarget(common, now, func(t *target) error { return inspect(ctx, t, out) })

	case "export-leaderboard":
		path := fs.String("out", "leaderboard.csv", "CSV output path")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withTarget(common, now, func(t *target) error { return exportLeaderboard(ctx, t, *path, out) })

	case "export-replay":
		id := fs.String("id", "", "Replay id")
		path := fs.String("out", "", "Output path (empty = stdout)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("export-replay: -id is required")
		}
		return withTarget(common, now, func(t *target) error { return exportReplay(ctx, t, *id, *path, out) })

	case "import-replay":
		path := fs.String("in", "", "Replay JSON file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *path == "" {
			return fmt.Errorf("import-replay: -in is required")
		}
		return withTarget(common, now, func(t *target) error { return importReplay(ctx, t, *path, now(), out) })

	case "copy":
		toKind := fs.String("to-backend", storage.KindSQLite, "Destination backend")
		toPath := fs.String("to", "", "Destination save directory or sqlite file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *toPath == "" {
			return fmt.Errorf("copy: -to is required")
		}
		return withTarget(common, now, func(t *target) error { return copySaves(ctx, t, *toKind, *toPath, out) })

	case "delete":
		key := fs.String("key", "", "Slot key to delete")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *key == "" {
			return fmt.Errorf("delete: -key is required")
		}
		return withTarget(common, now, func(t *target) error { return deleteSlot(ctx, t, *key, out) })
	}
	return errUsage
}

func withTarget(c commonFlags, now func() time.Time, fn func(*target) error) error {
	t, err := c.open(now)
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}

func load(ctx context.Context, t *target) (*save.Document, error) {
	res := t.mgr.Load(ctx)
	if !res.Found {
		return nil, fmt.Errorf("no save under %s", t.mgr.CurrentKey())
	}
	if len(res.Reverted) > 0 {
		slog.Warn("save slices reverted to defaults", "slices", res.Reverted)
	}
	return res.Doc, nil
}

func inspect(ctx context.Context, t *target, out io.Writer) error {
	if store, ok := t.backend.(*sqlite.Store); ok {
		slots, err := store.Slots(ctx)
		if err != nil {
			return err
		}
		for _, s := range slots {
			fmt.Fprintf(out, "slot %s  %d bytes  updated %s\n", s.Key, s.SizeBytes, s.UpdatedAt.Format(time.RFC3339))
		}
	}

	res := t.mgr.Load(ctx)
	if !res.Found {
		fmt.Fprintf(out, "no save under %s\n", t.mgr.CurrentKey())
		return nil
	}
	doc := res.Doc
	fmt.Fprintf(out, "key:          %s (migrated=%v)\n", res.Key, res.Migrated)
	if len(res.Reverted) > 0 {
		fmt.Fprintf(out, "reverted:     %v\n", res.Reverted)
	}
	fmt.Fprintf(out, "profile:      %s level %d (%d xp)\n", doc.Profile.Name, doc.Profile.Level, doc.Profile.XP)
	fmt.Fprintf(out, "difficulty:   %s\n", doc.Difficulty)
	fmt.Fprintf(out, "lives:        %d\n", doc.Lives)
	if doc.RunState.Active {
		fmt.Fprintf(out, "story run:    %s stage %d, %d scrap\n", doc.RunState.PilotID, doc.RunState.Stage, doc.RunState.Scrap)
	}
	if doc.EndlessState != nil && doc.EndlessState.Active {
		fmt.Fprintf(out, "endless run:  %s wave %d, %d kills\n", doc.EndlessState.PilotID, doc.EndlessState.Wave, doc.EndlessState.Kills)
	}
	fmt.Fprintf(out, "achievements: %d\n", len(doc.Achievements))
	fmt.Fprintf(out, "replays:      %d\n", len(doc.Replays))
	for _, r := range doc.Replays {
		fmt.Fprintf(out, "  %s  %s stage %d  %s  %s\n", r.ID, r.PilotID, r.Stage, r.Outcome, replay.FormatDuration(r.Duration))
	}
	fmt.Fprintf(out, "leaderboard:  %d entries\n", doc.Leaderboard.Len())
	if best, ok := doc.Leaderboard.Best(); ok {
		fmt.Fprintf(out, "  best %d (wave %d, %s)\n", best.Score, best.Wave, best.PilotID)
	}
	return nil
}

func exportLeaderboard(ctx context.Context, t *target, path string, out io.Writer) error {
	doc, err := load(ctx, t)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create leaderboard csv: %w", err)
	}
	defer f.Close()
	rows := doc.Leaderboard.Rows()
	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("write leaderboard csv: %w", err)
	}
	fmt.Fprintf(out, "wrote %d entries to %s\n", len(rows), path)
	return nil
}

func exportReplay(ctx context.Context, t *target, id, path string, out io.Writer) error {
	doc, err := load(ctx, t)
	if err != nil {
		return err
	}
	rec, ok := replay.Find(doc.Replays, id)
	if !ok {
		return fmt.Errorf("unknown replay %q", id)
	}
	data, err := replay.Export(rec)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = out.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func importReplay(ctx context.Context, t *target, path string, now time.Time, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read replay: %w", err)
	}
	res := t.mgr.Load(ctx)
	doc := res.Doc
	rec, err := replay.Import(doc.Replays, raw, now)
	if err != nil {
		return err
	}
	doc.Replays = replay.Append(doc.Replays, rec, t.cfg.Save.MaxReplays)
	if err := t.mgr.Save(ctx, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %s\n", rec.ID)
	return nil
}

func copySaves(ctx context.Context, t *target, kind, path string, out io.Writer) error {
	dst, err := storage.Open(kind, path)
	if err != nil {
		return err
	}
	defer dst.Close()
	n, err := save.Copy(ctx, dst, t.backend)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "copied %d slots\n", n)
	return nil
}

// deleter is implemented by backends that can drop a slot.
type deleter interface {
	Delete(ctx context.Context, key string) error
}

func deleteSlot(ctx context.Context, t *target, key string, out io.Writer) error {
	d, ok := t.backend.(deleter)
	if !ok {
		return fmt.Errorf("backend %q cannot delete slots", t.cfg.Save.Backend)
	}
	if err := d.Delete(ctx, key); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", key)
	return nil
}
