// Package migrations embeds the sqlite schema for the key-value substrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
