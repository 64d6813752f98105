// Package migrations embeds the API's SQL schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
