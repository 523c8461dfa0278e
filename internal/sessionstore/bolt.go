package sessionstore

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps sessions in a BBolt file, one bucket per session name.
type BoltStore struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore wraps an open BBolt database.
func NewBoltStore(db *bbolt.DB, ttl time.Duration) *BoltStore {
	return &BoltStore{db: db, ttl: ttl, now: time.Now}
}

// OpenBoltStore opens (or creates) the BBolt file at path.
func OpenBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltStore(db, ttl), nil
}

// Load reads the session inside a read-only transaction.
func (s *BoltStore) Load(_ context.Context, name, id string) (*Session, error) {
	if err := validateKey(name, id); err != nil {
		return nil, err
	}
	var sess *Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		// data is only valid inside the transaction; decodeRecord copies it.
		decoded, err := decodeRecord(name, id, data)
		if err != nil {
			return err
		}
		sess = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkExpiry(sess, s.now())
}

// Save upserts the session record.
func (s *BoltStore) Save(_ context.Context, sess *Session) error {
	if err := prepareSave(sess, s.ttl, s.now()); err != nil {
		return err
	}
	data, err := encodeRecord(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(sess.Name))
		if err != nil {
			return err
		}
		return b.Put([]byte(sess.ID), data)
	})
}

// Close closes the underlying BBolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
