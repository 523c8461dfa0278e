package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260105090000, down_20260105090000)
}

type tableSpec struct {
	name    string
	model   any
	indexes []string
}

// Tables whose boolean columns need a DDL default are declared here rather
// than through the runtime models.

type userTable struct {
	bun.BaseModel `bun:"table:users"`

	ID                int64     `bun:"id,pk,autoincrement"`
	Username          string    `bun:"username,notnull,unique"`
	Email             string    `bun:"email,notnull"`
	RoleID            *int64    `bun:"role_id"`
	PreferredLanguage string    `bun:"preferred_language,notnull,default:'en'"`
	IsActive          bool      `bun:"is_active,notnull,default:true"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type apiTokenTable struct {
	bun.BaseModel `bun:"table:api_tokens"`

	ID        int64      `bun:"id,pk,autoincrement"`
	UserID    int64      `bun:"user_id,notnull"`
	TokenHash string     `bun:"token_hash,notnull,unique"`
	Name      string     `bun:"name"`
	Revoked   bool       `bun:"revoked,notnull,default:false"`
	ExpiresAt *time.Time `bun:"expires_at"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

type rememberTokenTable struct {
	bun.BaseModel `bun:"table:user_remember_tokens"`

	ID        int64      `bun:"id,pk,autoincrement"`
	UserID    int64      `bun:"user_id,notnull"`
	Token     string     `bun:"token,notnull,unique"`
	Revoked   bool       `bun:"revoked,notnull,default:false"`
	ExpiresAt *time.Time `bun:"expires_at"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

type persistentSessionTable struct {
	bun.BaseModel `bun:"table:persistent_sessions"`

	ID           int64      `bun:"id,pk,autoincrement"`
	UserID       int64      `bun:"user_id,notnull"`
	SessionToken string     `bun:"session_token,notnull,unique"`
	Revoked      bool       `bun:"revoked,notnull,default:false"`
	ExpiresAt    *time.Time `bun:"expires_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func identityTables() []tableSpec {
	return []tableSpec{
		{
			name:  "users",
			model: (*userTable)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id)`,
			},
		},
		{name: "roles", model: (*models.Role)(nil)},
		{
			name:  "role_permissions",
			model: (*models.RolePermission)(nil),
		},
		{
			name:  "user_roles",
			model: (*models.UserRole)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id)`,
			},
		},
		{
			name:  "api_tokens",
			model: (*apiTokenTable)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_api_tokens_user_id ON api_tokens(user_id)`,
			},
		},
		{
			name:  "user_remember_tokens",
			model: (*rememberTokenTable)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_user_remember_tokens_user_id ON user_remember_tokens(user_id)`,
			},
		},
		{
			name:  "persistent_sessions",
			model: (*persistentSessionTable)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_persistent_sessions_user_id ON persistent_sessions(user_id)`,
			},
		},
		{
			name:  "http_sessions",
			model: (*models.HTTPSession)(nil),
			indexes: []string{
				`CREATE INDEX IF NOT EXISTS idx_http_sessions_expires_at ON http_sessions(expires_at)`,
			},
		},
	}
}

// up_20260105090000 creates the account, grant, credential and session tables
func up_20260105090000(ctx context.Context, db *bun.DB) error {
	for _, table := range identityTables() {
		fmt.Printf(" [up] creating %s table...", table.name)
		_, err := db.NewCreateTable().
			Model(table.model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}

		for _, stmt := range table.indexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create %s index: %w", table.name, err)
			}
		}
		fmt.Println(" OK")
	}

	return nil
}

// down_20260105090000 drops the tables in reverse order
func down_20260105090000(ctx context.Context, db *bun.DB) error {
	tables := identityTables()
	for i := len(tables) - 1; i >= 0; i-- {
		fmt.Printf(" [down] dropping %s table...", tables[i].name)
		_, err := db.NewDropTable().
			Model(tables[i].model).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop %s table: %w", tables[i].name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
