package sessionstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/db/bunx"
	"github.com/terraconstructs/authresolve/internal/db/models"
	"go.etcd.io/bbolt"
)

// backendCase bundles a store with a hook that plants a raw, undecodable payload.
type backendCase struct {
	name         string
	store        Store
	setNow       func(func() time.Time)
	plantGarbage func(t *testing.T, name, id string)
}

func newBackends(t *testing.T) []backendCase {
	t.Helper()
	ctx := context.Background()
	ttl := time.Hour

	mem := NewMemoryStore(16, ttl)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := NewRedisStore(client, "sess", ttl)

	boltDB, err := bbolt.Open(filepath.Join(t.TempDir(), "sessions.db"), 0600, nil)
	require.NoError(t, err)
	bs := NewBoltStore(boltDB, ttl)

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = db.NewCreateTable().Model((*models.HTTPSession)(nil)).Exec(ctx)
	require.NoError(t, err)
	ss := NewSQLStore(db, ttl)

	t.Cleanup(func() {
		_ = mem.Close()
		_ = rs.Close()
		_ = bs.Close()
	})

	return []backendCase{
		{
			name:   "memory",
			store:  mem,
			setNow: func(f func() time.Time) { mem.now = f },
		},
		{
			name:   "redis",
			store:  rs,
			setNow: func(f func() time.Time) { rs.now = f },
			plantGarbage: func(t *testing.T, name, id string) {
				require.NoError(t, mr.Set(rs.key(name, id), "{not json"))
			},
		},
		{
			name:   "bolt",
			store:  bs,
			setNow: func(f func() time.Time) { bs.now = f },
			plantGarbage: func(t *testing.T, name, id string) {
				require.NoError(t, boltDB.Update(func(tx *bbolt.Tx) error {
					b, err := tx.CreateBucketIfNotExists([]byte(name))
					if err != nil {
						return err
					}
					return b.Put([]byte(id), []byte("{not json"))
				}))
			},
		},
		{
			name:   "sql",
			store:  ss,
			setNow: func(f func() time.Time) { ss.now = f },
			plantGarbage: func(t *testing.T, name, id string) {
				_, err := db.NewInsert().Model(&models.HTTPSession{
					Name:      name,
					ID:        id,
					Payload:   "{not json",
					ExpiresAt: time.Now().Add(time.Hour),
					UpdatedAt: time.Now(),
				}).Exec(ctx)
				require.NoError(t, err)
			},
		},
	}
}

func TestStores_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	for _, bc := range newBackends(t) {
		t.Run(bc.name, func(t *testing.T) {
			err := bc.store.Save(ctx, &Session{
				Name: "sid",
				ID:   "abc123",
				Attributes: map[string]any{
					"user_id":  float64(42),
					"username": "alice",
				},
			})
			require.NoError(t, err)

			sess, err := bc.store.Load(ctx, "sid", "abc123")
			require.NoError(t, err)
			assert.Equal(t, "sid", sess.Name)
			assert.Equal(t, "abc123", sess.ID)
			assert.Equal(t, "alice", sess.Attributes["username"])
			assert.EqualValues(t, 42, sess.Attributes["user_id"])
			assert.False(t, sess.ExpiresAt.IsZero())

			// Same id under another name is a different session
			_, err = bc.store.Load(ctx, "legacy_sid", "abc123")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_NotFound(t *testing.T) {
	ctx := context.Background()
	for _, bc := range newBackends(t) {
		t.Run(bc.name, func(t *testing.T) {
			_, err := bc.store.Load(ctx, "sid", "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = bc.store.Load(ctx, "sid", "")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_Expired(t *testing.T) {
	ctx := context.Background()
	for _, bc := range newBackends(t) {
		t.Run(bc.name, func(t *testing.T) {
			require.NoError(t, bc.store.Save(ctx, &Session{
				Name:       "sid",
				ID:         "old",
				Attributes: map[string]any{"user_id": 1},
			}))

			bc.setNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
			t.Cleanup(func() { bc.setNow(time.Now) })

			_, err := bc.store.Load(ctx, "sid", "old")
			assert.ErrorIs(t, err, ErrExpired)
		})
	}
}

func TestStores_Corrupt(t *testing.T) {
	ctx := context.Background()
	for _, bc := range newBackends(t) {
		if bc.plantGarbage == nil {
			continue
		}
		t.Run(bc.name, func(t *testing.T) {
			bc.plantGarbage(t, "sid", "garbage")

			_, err := bc.store.Load(ctx, "sid", "garbage")
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestStores_SaveRequiresKey(t *testing.T) {
	ctx := context.Background()
	for _, bc := range newBackends(t) {
		t.Run(bc.name, func(t *testing.T) {
			assert.Error(t, bc.store.Save(ctx, &Session{Name: "sid"}))
			assert.Error(t, bc.store.Save(ctx, nil))
		})
	}
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4, time.Hour)
	require.NoError(t, s.Save(ctx, &Session{Name: "sid", ID: "x", Attributes: map[string]any{"a": 1}}))

	first, err := s.Load(ctx, "sid", "x")
	require.NoError(t, err)
	first.Attributes["a"] = 2

	second, err := s.Load(ctx, "sid", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Attributes["a"])
}

func TestRedisStore_KeyTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sess", time.Minute)
	defer s.Close()

	require.NoError(t, s.Save(ctx, &Session{Name: "sid", ID: "ttl", Attributes: map[string]any{}}))
	assert.True(t, mr.Exists("sess:sid:ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx, "sid", "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.SessionConfig{Backend: config.SessionBackendMemory, MemoryCapacity: 8, TTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, config.SessionConfig{Backend: config.SessionBackendBolt, BoltPath: filepath.Join(t.TempDir(), "s.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.SessionConfig{Backend: config.SessionBackendSQL}, nil)
	assert.Error(t, err)

	_, err = New(ctx, config.SessionConfig{Backend: "nope"}, nil)
	assert.Error(t, err)
}
