package migrations

import "embed"

// FS contains embedded SQLite migrations for chain custody storage.
//
//go:embed *.sql
var FS embed.FS
