package db

import "embed"

// EmbedMigrations holds the ledger schema, applied by RunMigrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
