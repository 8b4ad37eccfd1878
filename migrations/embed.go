// Package migrations embeds the goose SQL migration files so cmd/migrate
// can run them without needing a filesystem path at runtime.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
