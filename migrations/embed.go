// Package migrations embeds the journal schema migration files.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
