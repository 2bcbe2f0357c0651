// Package migrations embeds the goose SQL migrations for both backends.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
