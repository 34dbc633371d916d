// Package migrations embeds the SQLite schema.
package migrations

import "embed"

// FS contains the ordered schema migrations.
//
//go:embed *.sql
var FS embed.FS
