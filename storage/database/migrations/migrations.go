// Package migrations embeds the goose SQL migrations. They are written in the subset of SQL shared
// by PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
