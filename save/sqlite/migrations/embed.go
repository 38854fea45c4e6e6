package migrations

import "embed"

// FS contains the embedded SQLite migrations for save slots.
//
//go:embed *.sql
var FS embed.FS
