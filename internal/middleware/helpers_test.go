package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/authresolve/internal/auth"
	"github.com/terraconstructs/authresolve/internal/db/bunx"
	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/terraconstructs/authresolve/internal/migrations"
	"github.com/terraconstructs/authresolve/internal/repository"
	"github.com/terraconstructs/authresolve/internal/services/identity"
	"github.com/terraconstructs/authresolve/internal/sessionstore"
)

var testExtractOptions = ExtractOptions{
	SessionNames:     []string{"legacy_sid", "sid"},
	PersistentCookie: "remember_token",
	BearerHeader:     "X-API-Token",
}

type testStack struct {
	db       *bun.DB
	sessions *sessionstore.MemoryStore
	engine   *identity.Engine
}

// newTestStack wires a real engine over a migrated in-memory SQLite database
// and a memory session store. Seeded accounts:
//
//	42 vendor (role 2: view_orders), API token "api-secret"
//	43 disabled
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	roleID := int64(2)
	inserts := []any{
		&models.Role{ID: 2, Key: "vendor"},
		&models.RolePermission{RoleID: 2, PermissionKey: "view_orders"},
		&models.User{ID: 42, Username: "vendor42", Email: "v@shop.test", RoleID: &roleID, IsActive: true},
		&models.User{ID: 43, Username: "gone", Email: "g@shop.test", IsActive: false},
		&models.APIToken{UserID: 42, TokenHash: auth.HashToken("api-secret"), Name: "ci"},
	}
	for _, m := range inserts {
		_, err := db.NewInsert().Model(m).Exec(ctx)
		require.NoError(t, err)
	}

	sessions := sessionstore.NewMemoryStore(100, time.Hour)
	engine, err := identity.NewEngine(identity.EngineDependencies{
		Sessions: sessions,
		Users:    repository.NewBunUserRepository(db),
		Tokens:   repository.NewBunTokenRepository(db),
		Grants:   repository.NewBunGrantRepository(db),
	}, identity.EngineConfig{
		DefaultSessionName:   "sid",
		CreateDefaultSession: true,
		SafetyNet:            identity.DefaultSafetyNetPolicy(),
	})
	require.NoError(t, err)

	return &testStack{db: db, sessions: sessions, engine: engine}
}

func (s *testStack) putSession(t *testing.T, name, id string, attrs map[string]any) {
	t.Helper()
	require.NoError(t, s.sessions.Save(context.Background(), &sessionstore.Session{
		Name:       name,
		ID:         id,
		Attributes: attrs,
	}))
}
