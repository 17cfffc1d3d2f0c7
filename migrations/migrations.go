// Package migrations embeds the versioned SQL schema applied outside development.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
