// Package migrations holds the credential store schema. Each file registers
// one bun migration named after its timestamp prefix.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry consumed by `authd db` and by tests.
var Migrations = migrate.NewMigrations()
