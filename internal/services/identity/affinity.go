package identity

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/authresolve/internal/sessionstore"
	"github.com/terraconstructs/authresolve/internal/telemetry"
)

// SessionAffinityResolver picks which of several session stores holds the
// caller's authenticated session.
type SessionAffinityResolver struct {
	sessions      SessionLoader
	defaultName   string
	createDefault bool
	newID         func() string
}

// NewSessionAffinityResolver creates a resolver. When createDefault is set
// and nothing usable is found, an unpersisted session named defaultName is
// returned.
func NewSessionAffinityResolver(sessions SessionLoader, defaultName string, createDefault bool) *SessionAffinityResolver {
	return &SessionAffinityResolver{
		sessions:      sessions,
		defaultName:   defaultName,
		createDefault: createDefault,
		newID:         uuid.NewString,
	}
}

// Resolve probes candidates in the given order and activates the first
// session carrying an identity marker. Later duplicates of a name are
// ignored. Losing candidates are never modified.
//
// Without a match it returns the session under the default name (loaded if
// the request carried one, otherwise freshly created), or ErrNoActiveSession
// when default creation is disabled.
func (r *SessionAffinityResolver) Resolve(ctx context.Context, candidates []SessionCandidate) (*ActiveSession, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.SessionAffinity",
		attribute.Int(telemetry.AttrCandidateCount, len(candidates)),
	)
	defer span.End()

	var fallback *ActiveSession
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if c.Name == "" {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}

		if strings.TrimSpace(c.RawValue) == "" {
			continue
		}

		sess, err := r.sessions.Load(ctx, c.Name, c.RawValue)
		if err != nil {
			event := log.Warn()
			if isUnusableSession(err) {
				event = log.Debug()
			}
			event.Str("session_name", c.Name).
				Err(err).
				Msg("session candidate skipped")
			telemetry.AddEvent(span, "candidate.skipped", attribute.String(telemetry.AttrSessionName, c.Name))
			continue
		}

		active := &ActiveSession{
			Identifier: sess.ID,
			Name:       c.Name,
			Attributes: maps.Clone(sess.Attributes),
		}
		if active.Attributes == nil {
			active.Attributes = map[string]any{}
		}

		if HasIdentityMarker(active.Attributes) {
			span.SetAttributes(attribute.String(telemetry.AttrSessionName, c.Name))
			return active, nil
		}
		if c.Name == r.defaultName {
			fallback = active
		}
	}

	if fallback != nil {
		span.SetAttributes(attribute.String(telemetry.AttrSessionName, fallback.Name))
		return fallback, nil
	}
	if !r.createDefault {
		telemetry.AddEvent(span, "session.none")
		return nil, ErrNoActiveSession
	}

	telemetry.AddEvent(span, "session.created", attribute.String(telemetry.AttrSessionName, r.defaultName))
	return &ActiveSession{
		Identifier: r.newID(),
		Name:       r.defaultName,
		Attributes: map[string]any{},
		Fresh:      true,
	}, nil
}

// isUnusableSession separates ordinary misses from store failures.
func isUnusableSession(err error) bool {
	return errors.Is(err, sessionstore.ErrNotFound) ||
		errors.Is(err, sessionstore.ErrExpired) ||
		errors.Is(err, sessionstore.ErrCorrupt)
}

// HasIdentityMarker reports whether attrs carry a cached user snapshot, a
// usable user id, or a username.
func HasIdentityMarker(attrs map[string]any) bool {
	if snap, ok := attrs[AttrUserSnapshot].(map[string]any); ok && len(snap) > 0 {
		return true
	}
	if _, ok := parseUserID(attrs[AttrUserID]); ok {
		return true
	}
	if name, ok := attrs[AttrUsername].(string); ok && strings.TrimSpace(name) != "" {
		return true
	}
	return false
}

// parseUserID accepts the numeric shapes a session encoder may produce.
func parseUserID(v any) (int64, bool) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		id = int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	default:
		return 0, false
	}
	return id, id > 0
}
