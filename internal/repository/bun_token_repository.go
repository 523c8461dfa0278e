package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/terraconstructs/authresolve/internal/auth"
	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
)

// BunTokenRepository implements TokenRepository using Bun ORM
type BunTokenRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ TokenRepository = (*BunTokenRepository)(nil)

// NewBunTokenRepository creates a new Bun-based token repository
func NewBunTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db, now: time.Now}
}

// FindPersistentToken probes every configured location. A location whose
// query fails (for example a table this deployment never had) is skipped;
// an error is returned only when every location failed.
func (r *BunTokenRepository) FindPersistentToken(ctx context.Context, locations []config.TokenLocation, raw, hashed string) (int64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}

	values := []string{raw}
	if hashed != "" && hashed != raw {
		values = append(values, hashed)
	}

	var errs []error
	for _, loc := range locations {
		for _, value := range values {
			userID, found, err := r.lookupPersistent(ctx, loc, value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", loc, err))
				break
			}
			if found {
				if value == raw && len(values) > 1 {
					log.Debug().Str("location", loc.String()).Int64("user_id", userID).
						Msg("persistent token matched unhashed value")
				}
				return userID, true, nil
			}
		}
	}

	if len(locations) > 0 && len(errs) == len(locations) {
		return 0, false, fmt.Errorf("find persistent token: %w", errors.Join(errs...))
	}
	return 0, false, nil
}

func (r *BunTokenRepository) lookupPersistent(ctx context.Context, loc config.TokenLocation, value string) (int64, bool, error) {
	q := r.db.NewSelect().
		TableExpr("?", bun.Ident(loc.Table)).
		ColumnExpr("?", bun.Ident(loc.UserIDColumn)).
		Where("? = ?", bun.Ident(loc.Column), value)

	if loc.RevokedColumn != "" {
		q = q.Where("? = ?", bun.Ident(loc.RevokedColumn), false)
	}
	if loc.ExpiresColumn != "" {
		now := r.now()
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? IS NULL", bun.Ident(loc.ExpiresColumn)).
				WhereOr("? > ?", bun.Ident(loc.ExpiresColumn), now)
		})
	}

	var userID int64
	if err := q.Limit(1).Scan(ctx, &userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return userID, userID > 0, nil
}

// FindBearerToken hashes the token and joins api_tokens to users so a
// token of a deleted account never resolves.
func (r *BunTokenRepository) FindBearerToken(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, nil
	}

	var userID int64
	err := r.db.NewSelect().
		Model((*models.APIToken)(nil)).
		ColumnExpr("u.id").
		Join("JOIN users AS u ON u.id = at.user_id").
		Where("at.token_hash = ?", auth.HashToken(token)).
		Where("at.revoked = ?", false).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("at.expires_at IS NULL").
				WhereOr("at.expires_at > ?", r.now())
		}).
		Limit(1).
		Scan(ctx, &userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find bearer token: %w", err)
	}
	return userID, userID > 0, nil
}
