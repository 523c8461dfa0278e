package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terraconstructs/authresolve/internal/db/models"
	"github.com/uptrace/bun"
)

// SQLStore keeps sessions in the http_sessions table.
type SQLStore struct {
	db  *bun.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore shares the application's *bun.DB pool.
func NewSQLStore(db *bun.DB, ttl time.Duration) *SQLStore {
	return &SQLStore{db: db, ttl: ttl, now: time.Now}
}

// Load selects the session row by primary key.
func (s *SQLStore) Load(ctx context.Context, name, id string) (*Session, error) {
	if err := validateKey(name, id); err != nil {
		return nil, err
	}
	row := new(models.HTTPSession)
	err := s.db.NewSelect().
		Model(row).
		Where("name = ?", name).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}
	sess, err := decodeRecord(name, id, []byte(row.Payload))
	if err != nil {
		return nil, err
	}
	// The column is authoritative for expiry.
	sess.ExpiresAt = row.ExpiresAt
	return checkExpiry(sess, s.now())
}

// Save upserts the session row.
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	now := s.now()
	if err := prepareSave(sess, s.ttl, now); err != nil {
		return err
	}
	data, err := encodeRecord(sess)
	if err != nil {
		return err
	}
	row := &models.HTTPSession{
		Name:      sess.Name,
		ID:        sess.ID,
		Payload:   string(data),
		ExpiresAt: sess.ExpiresAt,
		UpdatedAt: now,
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (name, id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.Name, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *SQLStore) Close() error {
	return nil
}
