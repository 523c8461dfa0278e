package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

var _ UserRepository = (*BunUserRepository)(nil)

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// GetByID loads the identity projection of a user.
func (r *BunUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Column("id", "username", "email", "role_id", "preferred_language", "is_active").
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by ID: %w", err)
	}
	return user, nil
}
