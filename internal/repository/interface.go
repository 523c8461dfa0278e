package repository

import (
	"context"

	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/db/models"
)

// UserRepository reads account rows.
type UserRepository interface {
	// GetByID returns (nil, nil) when no user has the id.
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenRepository resolves already-issued credentials to user ids.
type TokenRepository interface {
	// FindPersistentToken searches locations in order, trying raw then hashed
	// per location, and returns the first non-revoked, non-expired match.
	FindPersistentToken(ctx context.Context, locations []config.TokenLocation, raw, hashed string) (int64, bool, error)

	// FindBearerToken resolves an opaque API token to an existing user.
	FindBearerToken(ctx context.Context, token string) (int64, bool, error)
}

// GrantRepository reads the relational role/permission tables.
type GrantRepository interface {
	GetRolePermissions(ctx context.Context, roleID int64) ([]string, error)
	GetUserRoleMemberships(ctx context.Context, userID int64) ([]int64, error)
	// GetRoleKeys maps role ids to their keys; unknown ids are omitted.
	GetRoleKeys(ctx context.Context, roleIDs []int64) (map[int64]string, error)
}
