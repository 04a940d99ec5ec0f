// Package migrations embeds the SQL migration files shared by the
// postgres and sqlite backends as one embed.FS, so both can import the
// same migration set instead of duplicating it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
