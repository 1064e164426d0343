package db

import "embed"

// migrationsFS holds the goose SQL migrations applied at start-up.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
