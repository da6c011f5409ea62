// Package migrations embeds the goose SQL migrations applied to the
// local sqlite database at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
