package save

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/telemetry"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, b Backend) (*Manager, *config.Config) {
	t.Helper()
	cfg := config.Default()
	return NewManager(b, cfg, Options{Now: func() time.Time { return now }}), cfg
}

// ---------- Load ----------

func TestLoadMissingReturnsDefaults(t *testing.T) {
	m, cfg := newTestManager(t, NewMemoryBackend())
	res := m.Load(context.Background())
	if res.Found || res.Migrated || len(res.Reverted) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Doc.Lives != cfg.Story.Lives || res.Doc.Difficulty != "normal" {
		t.Errorf("defaults = lives %d difficulty %s", res.Doc.Lives, res.Doc.Difficulty)
	}
	if res.Doc.Settings.AutosaveIntervalSeconds != 30 {
		t.Errorf("autosave = %d, want 30", res.Doc.Settings.AutosaveIntervalSeconds)
	}
	if res.Doc.Stats == nil || res.Doc.Talents == nil || res.Doc.Leaderboard == nil || res.Doc.EndlessState == nil {
		t.Error("default pointers must be allocated")
	}
}

func TestLoadFallsBackToPreviousVersion(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, _ := newTestManager(t, b)
	if err := b.Put(ctx, m.PreviousKey(), []byte(`{"schemaVersion":2,"lives":2,"craftedItems":{"plating":1}}`)); err != nil {
		t.Fatal(err)
	}

	res := m.Load(ctx)
	if !res.Found || !res.Migrated {
		t.Fatalf("found=%v migrated=%v", res.Found, res.Migrated)
	}
	if res.Key != "scrapline_save_v2" {
		t.Errorf("key = %s", res.Key)
	}
	if res.Doc.Lives != 2 || res.Doc.CraftedItems["plating"] != 1 {
		t.Errorf("old data not used: %+v", res.Doc)
	}
	if res.Doc.Codex == nil || res.Doc.Replays == nil {
		t.Error("slices absent from the old save should take defaults")
	}
}

func TestLoadPrefersCurrentKey(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, _ := newTestManager(t, b)
	b.Put(ctx, m.PreviousKey(), []byte(`{"lives":1}`))
	b.Put(ctx, m.CurrentKey(), []byte(`{"lives":3}`))

	res := m.Load(ctx)
	if res.Migrated || res.Doc.Lives != 3 {
		t.Errorf("migrated=%v lives=%d", res.Migrated, res.Doc.Lives)
	}
}

func TestLoadRevertsMalformedSlices(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, cfg := newTestManager(t, b)
	blob := `{
		"lives": "three",
		"difficulty": "hard",
		"stats": null,
		"talents": {"availablePoints": 5, "totalPointsEarned": 2, "pilots": {}},
		"settings": {"autosaveIntervalSeconds": 0, "combatSpeed": 2},
		"codex": {"scrap_drone": {"seen": 4, "killed": 3}}
	}`
	b.Put(ctx, m.CurrentKey(), []byte(blob))

	res := m.Load(ctx)
	for _, key := range []string{"lives", "stats", "talents"} {
		if !slices.Contains(res.Reverted, key) {
			t.Errorf("%s not reverted: %v", key, res.Reverted)
		}
	}
	if res.Doc.Lives != cfg.Story.Lives {
		t.Errorf("lives = %d, want default", res.Doc.Lives)
	}
	if res.Doc.Difficulty != "hard" {
		t.Errorf("difficulty = %s, want hard", res.Doc.Difficulty)
	}
	if res.Doc.Stats == nil || res.Doc.Talents.TotalPointsEarned != 0 {
		t.Error("reverted slices must hold defaults")
	}
	if res.Doc.Settings.AutosaveIntervalSeconds != 30 || res.Doc.Settings.CombatSpeed != 2 {
		t.Errorf("settings = %+v", res.Doc.Settings)
	}
	if res.Doc.Codex["scrap_drone"].Killed != 3 {
		t.Error("codex slice lost")
	}
}

func TestLoadUnknownDifficultyReverts(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, _ := newTestManager(t, b)
	b.Put(ctx, m.CurrentKey(), []byte(`{"difficulty":"impossible"}`))
	res := m.Load(ctx)
	if res.Doc.Difficulty != "normal" || !slices.Contains(res.Reverted, "difficulty") {
		t.Errorf("difficulty = %s reverted = %v", res.Doc.Difficulty, res.Reverted)
	}
}

func TestLoadUnreadableBlob(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, _ := newTestManager(t, b)
	b.Put(ctx, m.CurrentKey(), []byte("{not json"))

	res := m.Load(ctx)
	if !res.Found {
		t.Error("blob existed")
	}
	if len(res.Reverted) != len(m.codecs()) {
		t.Errorf("reverted %d slices, want all %d", len(res.Reverted), len(m.codecs()))
	}
	if res.Doc.Lives != 3 {
		t.Errorf("lives = %d", res.Doc.Lives)
	}
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestLoadBackendErrorDegrades(t *testing.T) {
	m, _ := newTestManager(t, failingBackend{NewMemoryBackend()})
	res := m.Load(context.Background())
	if res.Found || res.Doc == nil {
		t.Errorf("result = %+v", res)
	}
}

// ---------- Save ----------

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, _ := newTestManager(t, b)

	doc := m.Defaults()
	doc.Profile.Name = "Ripley"
	doc.Talents.AwardPoints(4)
	doc.Stats.RecordEnemyKill("vanguard", "scrap_drone", false)
	doc.Leaderboard.Insert(telemetry.LeaderboardEntry{Wave: 7, Kills: 30, Score: 1000, PilotID: "pyro", Date: now})
	doc.Achievements["first_blood"] = now
	doc.Codex.MarkSeen("scrap_drone", now)
	doc.LastModifierUpdateDate = "2026-03-14"

	if err := m.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	res := m.Load(ctx)
	if !res.Found || res.Migrated || len(res.Reverted) != 0 {
		t.Fatalf("result = %+v", res)
	}
	got := res.Doc
	if got.Profile.Name != "Ripley" || got.Profile.ID != doc.Profile.ID {
		t.Errorf("profile = %+v", got.Profile)
	}
	if got.Talents.AvailablePoints != 4 || got.Stats.EnemiesKilled != 1 {
		t.Errorf("talents/stats lost")
	}
	if best, ok := got.Leaderboard.Best(); !ok || best.Score != 1000 {
		t.Errorf("leaderboard best = %+v", best)
	}
	if !got.Achievements.Has("first_blood") || got.Codex.Discovered() != 1 {
		t.Error("achievements/codex lost")
	}
	if got.SchemaVersion != 3 || got.LastModifierUpdateDate != "2026-03-14" {
		t.Errorf("version %d date %s", got.SchemaVersion, got.LastModifierUpdateDate)
	}
}

func TestLeaderboardResizedOnLoad(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m, cfg := newTestManager(t, b)
	cfg.Leaderboard.Size = 2
	b.Put(ctx, m.CurrentKey(), []byte(`{"leaderboard":[{"score":5},{"score":30},{"score":10}]}`))

	lb := m.Load(ctx).Doc.Leaderboard
	if lb.Len() != 2 || lb.MaxSize() != 2 {
		t.Fatalf("len %d max %d", lb.Len(), lb.MaxSize())
	}
	if e := lb.Entries(); e[0].Score != 30 || e[1].Score != 10 {
		t.Errorf("entries = %+v", e)
	}
}

// ---------- Backends ----------

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "saves")
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if err := b.Put(ctx, "x", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, "x", []byte("2")); err != nil {
		t.Fatal(err)
	}
	got, err := b.Get(ctx, "x")
	if err != nil || string(got) != "2" {
		t.Errorf("get = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, temp files left behind", len(entries))
	}
	keys, _ := b.Keys(ctx)
	if len(keys) != 1 || keys[0] != "x" {
		t.Errorf("keys = %v", keys)
	}
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src, dst := NewMemoryBackend(), NewMemoryBackend()
	src.Put(ctx, "a", []byte("1"))
	src.Put(ctx, "b", []byte("2"))
	n, err := Copy(ctx, dst, src)
	if err != nil || n != 2 {
		t.Fatalf("copy = %d, %v", n, err)
	}
	if got, _ := dst.Get(ctx, "b"); string(got) != "2" {
		t.Errorf("b = %q", got)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemoryBackend().Put(ctx, "k", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

// ---------- Document ----------

func TestProfileAddXP(t *testing.T) {
	p := Profile{Level: 1}
	if got := p.AddXP(250, 100); got != 2 {
		t.Errorf("levels gained = %d, want 2", got)
	}
	if p.Level != 3 || p.XP != 50 {
		t.Errorf("profile = %+v", p)
	}
	if got := p.AddXP(-5, 100); got != 0 {
		t.Error("negative xp gained levels")
	}
}

func TestCodex(t *testing.T) {
	c := Codex{}
	c.MarkSeen("drone", now)
	c.MarkSeen("drone", now.Add(time.Hour))
	c.MarkKilled("brute", now)
	if c["drone"].Seen != 2 || !c["drone"].FirstSeen.Equal(now) {
		t.Errorf("drone = %+v", c["drone"])
	}
	if c.Discovered() != 2 {
		t.Errorf("discovered = %d", c.Discovered())
	}
}
