// Package db embeds the SQL schema. Migrations apply in file-name order and
// are written to be idempotent, so both server startup and test containers
// run them unconditionally.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
