package identity

import (
	"context"
	"slices"
	"time"

	"github.com/terraconstructs/authresolve/internal/sessionstore"
)

// Session attribute keys that mark an authenticated session.
const (
	AttrUserSnapshot = "user"
	AttrUserID       = "user_id"
	AttrUsername     = "username"
)

// SessionCandidate is one session identifier presented on a request.
type SessionCandidate struct {
	Name     string
	RawValue string
}

// SessionLoader is the read side of a session store.
type SessionLoader interface {
	Load(ctx context.Context, name, id string) (*sessionstore.Session, error)
}

// ActiveSession is the session selected for this request.
type ActiveSession struct {
	Identifier string
	Name       string
	Attributes map[string]any

	// Fresh is set when the session was created in memory because the
	// request carried no usable default session. It has not been persisted.
	Fresh bool
}

// ResolvedVia names the chain tier that produced an identity.
type ResolvedVia string

const (
	ViaSnapshot        ResolvedVia = "snapshot"
	ViaSessionLookup   ResolvedVia = "session_lookup"
	ViaPersistentToken ResolvedVia = "persistent_token"
	ViaBearerToken     ResolvedVia = "bearer_token"
)

// ResolvedIdentity is the canonical current user. UserID is always positive.
type ResolvedIdentity struct {
	UserID            int64
	Username          string
	Email             string
	RoleID            *int64
	PreferredLanguage string
	ResolvedVia       ResolvedVia
	IsActive          bool
}

// PrimaryRoleID returns the single-role column value, or 0 when unset.
func (i *ResolvedIdentity) PrimaryRoleID() int64 {
	if i == nil || i.RoleID == nil {
		return 0
	}
	return *i.RoleID
}

// RoleGrant is one role held by the user. Key is empty when the role id has
// no row in the role directory.
type RoleGrant struct {
	RoleID int64
	Key    string
}

// KeySet is a set of opaque keys (role keys or permission keys).
type KeySet map[string]struct{}

// NewKeySet builds a set from keys, dropping duplicates and empty strings.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	s.Add(keys...)
	return s
}

// Add inserts keys, ignoring empty strings.
func (s KeySet) Add(keys ...string) {
	for _, k := range keys {
		if k != "" {
			s[k] = struct{}{}
		}
	}
}

// Has reports membership.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in ascending order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// AuthContext is the per-request resolution result. Read-only once built.
type AuthContext struct {
	Identity         *ResolvedIdentity
	Roles            KeySet
	RoleGrants       []RoleGrant
	Permissions      KeySet
	SafetyNetApplied bool
	Session          *ActiveSession
	ComputedAt       time.Time
	RequestID        string
}

// IsAuthenticated reports whether an identity was resolved.
func (a *AuthContext) IsAuthenticated() bool {
	return a != nil && a.Identity != nil
}

// HasPermission reports whether the caller holds the permission key.
func (a *AuthContext) HasPermission(key string) bool {
	return a.IsAuthenticated() && a.Permissions.Has(key)
}

// HasRole reports whether the caller holds the role key.
func (a *AuthContext) HasRole(key string) bool {
	return a.IsAuthenticated() && a.Roles.Has(key)
}

// Summary is the JSON view of an AuthContext.
type Summary struct {
	Authenticated     bool        `json:"authenticated"`
	UserID            int64       `json:"user_id,omitempty"`
	Username          string      `json:"username,omitempty"`
	Email             string      `json:"email,omitempty"`
	RoleID            *int64      `json:"role_id,omitempty"`
	PreferredLanguage string      `json:"preferred_language,omitempty"`
	ResolvedVia       ResolvedVia `json:"resolved_via,omitempty"`
	Session           string      `json:"session,omitempty"`
	Roles             []string    `json:"roles"`
	Permissions       []string    `json:"permissions"`
	SafetyNetApplied  bool        `json:"safety_net_applied,omitempty"`
	ComputedAt        time.Time   `json:"computed_at"`
	RequestID         string      `json:"request_id,omitempty"`
}

// Summary renders the context with sorted role and permission lists.
func (a *AuthContext) Summary() Summary {
	s := Summary{
		Roles:       a.Roles.Sorted(),
		Permissions: a.Permissions.Sorted(),
		ComputedAt:  a.ComputedAt,
		RequestID:   a.RequestID,
	}
	if a.Session != nil {
		s.Session = a.Session.Name
	}
	if id := a.Identity; id != nil {
		s.Authenticated = true
		s.UserID = id.UserID
		s.Username = id.Username
		s.Email = id.Email
		s.RoleID = id.RoleID
		s.PreferredLanguage = id.PreferredLanguage
		s.ResolvedVia = id.ResolvedVia
		s.SafetyNetApplied = a.SafetyNetApplied
	}
	return s
}
