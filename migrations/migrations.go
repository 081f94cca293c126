// Package migrations embeds the schema migration files so the migrate binary
// runs from any working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
