// Package sqlassets embeds the goose migrations so binaries stay self-contained.
package sqlassets

import "embed"

// Migrations holds migrations/*.sql, applied in version order by goose.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
