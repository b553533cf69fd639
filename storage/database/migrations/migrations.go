// Package migrations embeds the goose SQL migrations of the postgres storage.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
