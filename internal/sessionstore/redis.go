package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON record per session under prefix:name:id.
// Expiry is enforced both by the key TTL and by the stored deadline.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. The client is closed by Close.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix, ttl), nil
}

func (s *RedisStore) key(name, id string) string {
	if s.prefix == "" {
		return name + ":" + id
	}
	return s.prefix + ":" + name + ":" + id
}

// Load reads and decodes the session record.
func (s *RedisStore) Load(ctx context.Context, name, id string) (*Session, error) {
	if err := validateKey(name, id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(name, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}
	sess, err := decodeRecord(name, id, data)
	if err != nil {
		return nil, err
	}
	return checkExpiry(sess, s.now())
}

// Save writes the record with a TTL matching its deadline.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	now := s.now()
	if err := prepareSave(sess, s.ttl, now); err != nil {
		return err
	}
	data, err := encodeRecord(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return fmt.Errorf("session %s already expired", sess.Name)
		}
	}
	if err := s.client.Set(ctx, s.key(sess.Name, sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.Name, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
