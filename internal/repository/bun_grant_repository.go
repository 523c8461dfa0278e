package repository

import (
	"context"
	"fmt"

	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
)

// BunGrantRepository implements GrantRepository using Bun ORM
type BunGrantRepository struct {
	db *bun.DB
}

var _ GrantRepository = (*BunGrantRepository)(nil)

// NewBunGrantRepository creates a new Bun-based grant repository
func NewBunGrantRepository(db *bun.DB) *BunGrantRepository {
	return &BunGrantRepository{db: db}
}

// GetRolePermissions lists the permission keys granted to a role.
func (r *BunGrantRepository) GetRolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	var keys []string
	err := r.db.NewSelect().
		Model((*models.RolePermission)(nil)).
		Column("permission_key").
		Where("role_id = ?", roleID).
		Order("permission_key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("get role permissions: %w", err)
	}
	return keys, nil
}

// GetUserRoleMemberships lists role ids from the multi-role relation.
func (r *BunGrantRepository) GetUserRoleMemberships(ctx context.Context, userID int64) ([]int64, error) {
	var roleIDs []int64
	err := r.db.NewSelect().
		Model((*models.UserRole)(nil)).
		Column("role_id").
		Where("user_id = ?", userID).
		Order("role_id ASC").
		Scan(ctx, &roleIDs)
	if err != nil {
		return nil, fmt.Errorf("get user role memberships: %w", err)
	}
	return roleIDs, nil
}

// GetRoleKeys maps role ids to keys in one query.
func (r *BunGrantRepository) GetRoleKeys(ctx context.Context, roleIDs []int64) (map[int64]string, error) {
	keys := make(map[int64]string, len(roleIDs))
	if len(roleIDs) == 0 {
		return keys, nil
	}

	var roles []models.Role
	err := r.db.NewSelect().
		Model(&roles).
		Column("id", "key").
		Where("id IN (?)", bun.In(roleIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get role keys: %w", err)
	}
	for _, role := range roles {
		keys[role.ID] = role.Key
	}
	return keys, nil
}
