// Package migrations embeds the SQL schema migrations for each database backend.
package migrations

import "embed"

// FS holds one directory of migrations per backend: postgres/ and sqlite/.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
