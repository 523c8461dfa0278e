package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/authresolve/internal/db/bunx"
	"github.com/terraconstructs/authresolve/internal/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// newTestDB returns an in-memory SQLite database with every migration applied.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func int64Ptr(v int64) *int64 { return &v }
