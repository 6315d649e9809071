// Package migrations embeds the SQL schema files into the binary so the
// history database can be migrated without the files on disk.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
