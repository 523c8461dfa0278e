// Package sessionstore loads server-side session attribute maps by
// (cookie name, session id). Several backends share one record encoding so a
// deployment can move between them without rewriting sessions.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

var (
	// ErrNotFound means no session exists under the given name and id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the session exists but its lifetime has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrCorrupt means the stored payload could not be decoded.
	ErrCorrupt = errors.New("session payload is corrupt")
)

// maxIDLength bounds identifiers taken from untrusted cookies.
const maxIDLength = 256

// Session is one stored attribute map.
type Session struct {
	Name       string
	ID         string
	Attributes map[string]any
	ExpiresAt  time.Time
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store reads and writes sessions. Load never mutates stored state.
type Store interface {
	// Load returns ErrNotFound, ErrExpired or ErrCorrupt (wrapped) when the
	// session cannot be used.
	Load(ctx context.Context, name, id string) (*Session, error)
	// Save upserts the session. A zero ExpiresAt is replaced by now + TTL.
	Save(ctx context.Context, sess *Session) error
	Close() error
}

type record struct {
	Attributes map[string]any `json:"attributes"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

func encodeRecord(sess *Session) ([]byte, error) {
	data, err := json.Marshal(record{Attributes: sess.Attributes, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", sess.Name, err)
	}
	return data, nil
}

func decodeRecord(name, id string, data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrCorrupt)
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]any{}
	}
	return &Session{Name: name, ID: id, Attributes: rec.Attributes, ExpiresAt: rec.ExpiresAt}, nil
}

func validateKey(name, id string) error {
	if name == "" || id == "" || len(id) > maxIDLength {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return nil
}

// prepareSave validates the session and fills in the expiry.
func prepareSave(sess *Session, ttl time.Duration, now time.Time) error {
	if sess == nil || sess.Name == "" || sess.ID == "" {
		return errors.New("session name and id are required")
	}
	if len(sess.ID) > maxIDLength {
		return fmt.Errorf("session id longer than %d bytes", maxIDLength)
	}
	if sess.ExpiresAt.IsZero() && ttl > 0 {
		sess.ExpiresAt = now.Add(ttl)
	}
	return nil
}

func checkExpiry(sess *Session, now time.Time) (*Session, error) {
	if sess.Expired(now) {
		return nil, fmt.Errorf("%s: %w", sess.Name, ErrExpired)
	}
	return sess, nil
}

func cloneSession(sess *Session) *Session {
	out := *sess
	out.Attributes = maps.Clone(sess.Attributes)
	if out.Attributes == nil {
		out.Attributes = map[string]any{}
	}
	return &out
}
