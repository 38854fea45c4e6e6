// Package storage opens a save backend by name.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/scrapline/save"
	"github.com/pthm-cable/scrapline/save/sqlite"
)

// Backend kinds.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// DefaultDBName is used when a sqlite path names a directory.
const DefaultDBName = "scrapline.db"

// Open returns the backend of the given kind rooted at path. An empty kind
// means file.
func Open(kind, path string) (save.Backend, error) {
	switch kind {
	case "", KindFile:
		return save.NewFileBackend(path)
	case KindSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, DefaultDBName)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create save dir: %w", err)
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown save backend %q", kind)
}
