package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the minimal projection of an account row the resolution engine reads.
// Boolean columns carry no default tag: bun would write DEFAULT for a false
// value. Their column defaults live in the migration schema.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                int64     `bun:"id,pk,autoincrement"`
	Username          string    `bun:"username,notnull,unique"`
	Email             string    `bun:"email,notnull"`
	RoleID            *int64    `bun:"role_id"` // Primary (single-role column) grant
	PreferredLanguage string    `bun:"preferred_language,notnull,default:'en'"`
	IsActive          bool      `bun:"is_active,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Role is a named bundle of permission keys.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Key         string    `bun:"key,notnull,unique"`
	Description string    `bun:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// RolePermission grants one permission key to a role.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID        int64  `bun:"role_id,pk"`
	PermissionKey string `bun:"permission_key,pk,type:varchar(255)"`
}

// UserRole is an additional role membership beyond users.role_id.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	UserID    int64     `bun:"user_id,pk"`
	RoleID    int64     `bun:"role_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// APIToken is an opaque bearer credential. Only the SHA-256 hash is stored.
type APIToken struct {
	bun.BaseModel `bun:"table:api_tokens,alias:at"`

	ID        int64      `bun:"id,pk,autoincrement"`
	UserID    int64      `bun:"user_id,notnull"`
	TokenHash string     `bun:"token_hash,notnull,unique"`
	Name      string     `bun:"name"`
	Revoked   bool       `bun:"revoked,notnull"`
	ExpiresAt *time.Time `bun:"expires_at"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// RememberToken is the current "remember me" table.
type RememberToken struct {
	bun.BaseModel `bun:"table:user_remember_tokens,alias:urt"`

	ID        int64      `bun:"id,pk,autoincrement"`
	UserID    int64      `bun:"user_id,notnull"`
	Token     string     `bun:"token,notnull,unique"`
	Revoked   bool       `bun:"revoked,notnull"`
	ExpiresAt *time.Time `bun:"expires_at"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// PersistentSession is the legacy persistent-login table. Older rows carry
// the raw token; newer rows carry its hash.
type PersistentSession struct {
	bun.BaseModel `bun:"table:persistent_sessions,alias:ps"`

	ID           int64      `bun:"id,pk,autoincrement"`
	UserID       int64      `bun:"user_id,notnull"`
	SessionToken string     `bun:"session_token,notnull,unique"`
	Revoked      bool       `bun:"revoked,notnull"`
	ExpiresAt    *time.Time `bun:"expires_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// HTTPSession stores a serialized session attribute map for the sql backend.
type HTTPSession struct {
	bun.BaseModel `bun:"table:http_sessions,alias:hs"`

	Name      string    `bun:"name,pk,type:varchar(64)"`
	ID        string    `bun:"id,pk,type:varchar(128)"`
	Payload   string    `bun:"payload,notnull,type:text"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
