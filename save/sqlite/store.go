// Package sqlite provides a SQLite-backed save slot store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/save/sqlite/migrations"
)

// Store keeps save blobs in the save_slots table. It implements save.Backend.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ save.Backend = (*Store)(nil)

// Open opens the database at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the blob stored under key, or save.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM save_slots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, save.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get save slot %s: %w", key, err)
	}
	return data, nil
}

// Put inserts or replaces the blob under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("save key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO save_slots (key, data, updated_at, size_bytes) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at,
		   size_bytes = excluded.size_bytes`,
		key, data, s.now().UTC().UnixMilli(), len(data),
	)
	if err != nil {
		return fmt.Errorf("put save slot %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key FROM save_slots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list save slots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan save slot: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list save slots: %w", err)
	}
	return keys, nil
}

// SlotInfo describes a stored slot without its payload.
type SlotInfo struct {
	Key       string
	UpdatedAt time.Time
	SizeBytes int
}

// Slots lists slot metadata, most recently updated first.
func (s *Store) Slots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key, updated_at, size_bytes FROM save_slots ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("list save slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var (
			info    SlotInfo
			updated int64
		)
		if err := rows.Scan(&info.Key, &updated, &info.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan save slot: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a slot. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete save slot %s: %w", key, err)
	}
	return nil
}
