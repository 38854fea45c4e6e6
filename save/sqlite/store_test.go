package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/save"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saves.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return s, path
}

// ---------- Store ----------

func TestStorePutGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, save.ErrNotFound) {
		t.Fatalf("missing key err = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, "slot_v3", []byte(`{"lives":2}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "slot_v3", []byte(`{"lives":1}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "slot_v3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"lives":1}` {
		t.Errorf("data = %s", got)
	}

	if err := s.Put(ctx, "slot_v2", []byte(`{}`)); err != nil {
		t.Fatalf("put v2: %v", err)
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "slot_v2" || keys[1] != "slot_v3" {
		t.Errorf("keys = %v", keys)
	}

	slots, err := s.Slots(ctx)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	for _, info := range slots {
		if info.Key == "slot_v3" && info.SizeBytes != len(`{"lives":1}`) {
			t.Errorf("size = %d", info.SizeBytes)
		}
	}

	if err := s.Delete(ctx, "slot_v2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "slot_v2"); !errors.Is(err, save.ErrNotFound) {
		t.Errorf("deleted key err = %v", err)
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	got, err := again.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("reopened get = %q, %v", got, err)
	}
}

func TestStoreWithManagerMigratedLoad(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	cfg := config.Default()

	prev := save.Key(cfg.Save.KeyPrefix, cfg.Save.SchemaVersion-1)
	if err := s.Put(ctx, prev, []byte(`{"lives":1,"difficulty":"hard"}`)); err != nil {
		t.Fatal(err)
	}

	m := save.NewManager(s, cfg, save.Options{})
	res := m.Load(ctx)
	if !res.Found || !res.Migrated {
		t.Fatalf("found=%v migrated=%v", res.Found, res.Migrated)
	}
	if res.Doc.Lives != 1 || res.Doc.Difficulty != "hard" {
		t.Errorf("doc = lives %d difficulty %s", res.Doc.Lives, res.Doc.Difficulty)
	}

	if err := m.Save(ctx, res.Doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Get(ctx, m.CurrentKey()); err != nil {
		t.Errorf("current key not written: %v", err)
	}
}

// ---------- Migrations ----------

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}

func TestApplyMigrationsOnce(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"001_items.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
	}
	for i := 0; i < 2; i++ {
		if err := applyMigrations(ctx, db, fsys, ""); err != nil {
			t.Fatalf("apply #%d: %v", i, err)
		}
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 1 {
		t.Errorf("migration rows = %d, want 1", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='items'"); n != 1 {
		t.Error("items table missing")
	}
}

func TestApplyMigrationsFailureNotRecorded(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT TABLE nope(id INT);")},
	}
	if err := applyMigrations(ctx, db, bad, ""); err == nil {
		t.Fatal("bad migration applied")
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 0 {
		t.Errorf("failed migration recorded: %d rows", n)
	}
}

func TestExtractUp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"-- +migrate Up\nA;\n-- +migrate Down\nB;", "\nA;\n"},
		{"-- +migrate Up\nA;", "\nA;"},
		{"A;", "A;"},
	}
	for _, tt := range tests {
		if got := extractUp(tt.in); got != tt.want {
			t.Errorf("extractUp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
