// Package migrations holds the schema as bun SQL migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
