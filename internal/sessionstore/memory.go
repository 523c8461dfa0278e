package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in a bounded, expiring LRU. Intended for
// single-instance deployments and development.
type MemoryStore struct {
	lru *expirable.LRU[string, *Session]
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most capacity sessions.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru: expirable.NewLRU[string, *Session](capacity, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

func memoryKey(name, id string) string {
	return name + "\x00" + id
}

// Load returns a copy of the stored session.
func (s *MemoryStore) Load(_ context.Context, name, id string) (*Session, error) {
	if err := validateKey(name, id); err != nil {
		return nil, err
	}
	sess, ok := s.lru.Get(memoryKey(name, id))
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return checkExpiry(cloneSession(sess), s.now())
}

// Save stores a copy of sess.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if err := prepareSave(sess, s.ttl, s.now()); err != nil {
		return err
	}
	s.lru.Add(memoryKey(sess.Name, sess.ID), cloneSession(sess))
	return nil
}

// Close drops every session.
func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}
