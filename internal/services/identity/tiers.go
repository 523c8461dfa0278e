package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/terraconstructs/authresolve/internal/auth"
	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/repository"
)

// sessionSnapshot is the user record a login flow caches in the session.
type sessionSnapshot struct {
	ID                int64  `mapstructure:"id"`
	Username          string `mapstructure:"username"`
	Email             string `mapstructure:"email"`
	RoleID            *int64 `mapstructure:"role_id"`
	PreferredLanguage string `mapstructure:"preferred_language"`
	IsActive          *bool  `mapstructure:"is_active"`
}

// SnapshotTier trusts the cached user record as-is. It performs no store reads.
type SnapshotTier struct{}

// NewSnapshotTier creates the session snapshot tier.
func NewSnapshotTier() *SnapshotTier { return &SnapshotTier{} }

func (t *SnapshotTier) Name() ResolvedVia { return ViaSnapshot }

func (t *SnapshotTier) Extract(session *ActiveSession, _ RequestCredentials) (Credential, bool) {
	if session == nil {
		return nil, false
	}
	snap, ok := session.Attributes[AttrUserSnapshot].(map[string]any)
	if !ok || len(snap) == 0 {
		return nil, false
	}
	return SessionSnapshotCredential{Snapshot: snap}, true
}

func (t *SnapshotTier) Resolve(_ context.Context, cred Credential) (*ResolvedIdentity, error) {
	c, ok := cred.(SessionSnapshotCredential)
	if !ok {
		return nil, fmt.Errorf("snapshot tier: unexpected credential %T", cred)
	}

	var snap sessionSnapshot
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &snap,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot decoder: %w", err)
	}
	if err := decoder.Decode(c.Snapshot); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	if snap.ID <= 0 {
		return nil, fmt.Errorf("session snapshot has no user id")
	}

	active := snap.IsActive == nil || *snap.IsActive
	if !active {
		return nil, fmt.Errorf("user %d: %w", snap.ID, ErrAccountInactive)
	}

	return &ResolvedIdentity{
		UserID:            snap.ID,
		Username:          snap.Username,
		Email:             snap.Email,
		RoleID:            snap.RoleID,
		PreferredLanguage: snap.PreferredLanguage,
		IsActive:          true,
	}, nil
}

// SessionLookupTier loads the user named by a bare id in the session.
type SessionLookupTier struct {
	users repository.UserRepository
}

// NewSessionLookupTier creates the session user-id tier.
func NewSessionLookupTier(users repository.UserRepository) *SessionLookupTier {
	return &SessionLookupTier{users: users}
}

func (t *SessionLookupTier) Name() ResolvedVia { return ViaSessionLookup }

func (t *SessionLookupTier) Extract(session *ActiveSession, _ RequestCredentials) (Credential, bool) {
	if session == nil {
		return nil, false
	}
	id, ok := parseUserID(session.Attributes[AttrUserID])
	if !ok {
		return nil, false
	}
	return SessionUserIDCredential{UserID: id}, true
}

func (t *SessionLookupTier) Resolve(ctx context.Context, cred Credential) (*ResolvedIdentity, error) {
	c, ok := cred.(SessionUserIDCredential)
	if !ok {
		return nil, fmt.Errorf("session lookup tier: unexpected credential %T", cred)
	}
	return loadIdentity(ctx, t.users, c.UserID)
}

// PersistentTokenTier matches a long-lived token against every configured
// (table, column) location, trying the raw value before its hash.
type PersistentTokenTier struct {
	tokens    repository.TokenRepository
	users     repository.UserRepository
	locations []config.TokenLocation
}

// NewPersistentTokenTier creates the persistent token tier.
func NewPersistentTokenTier(tokens repository.TokenRepository, users repository.UserRepository, locations []config.TokenLocation) *PersistentTokenTier {
	return &PersistentTokenTier{tokens: tokens, users: users, locations: locations}
}

func (t *PersistentTokenTier) Name() ResolvedVia { return ViaPersistentToken }

func (t *PersistentTokenTier) Extract(_ *ActiveSession, creds RequestCredentials) (Credential, bool) {
	raw := strings.TrimSpace(creds.PersistentToken)
	if raw == "" || len(t.locations) == 0 {
		return nil, false
	}
	return PersistentTokenCredential{Raw: raw}, true
}

func (t *PersistentTokenTier) Resolve(ctx context.Context, cred Credential) (*ResolvedIdentity, error) {
	c, ok := cred.(PersistentTokenCredential)
	if !ok {
		return nil, fmt.Errorf("persistent token tier: unexpected credential %T", cred)
	}
	// Raw-then-hashed matching: older rows store the token itself.
	userID, found, err := t.tokens.FindPersistentToken(ctx, t.locations, c.Raw, auth.HashToken(c.Raw))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return loadIdentity(ctx, t.users, userID)
}

// BearerTokenTier resolves an opaque API token from the Authorization header
// or the alternate API token header.
type BearerTokenTier struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
}

// NewBearerTokenTier creates the bearer token tier.
func NewBearerTokenTier(tokens repository.TokenRepository, users repository.UserRepository) *BearerTokenTier {
	return &BearerTokenTier{tokens: tokens, users: users}
}

func (t *BearerTokenTier) Name() ResolvedVia { return ViaBearerToken }

func (t *BearerTokenTier) Extract(_ *ActiveSession, creds RequestCredentials) (Credential, bool) {
	if token, ok := auth.ParseBearer(creds.Authorization); ok {
		return BearerTokenCredential{Token: token}, true
	}
	if token := strings.TrimSpace(creds.APIToken); token != "" {
		return BearerTokenCredential{Token: token}, true
	}
	return nil, false
}

func (t *BearerTokenTier) Resolve(ctx context.Context, cred Credential) (*ResolvedIdentity, error) {
	c, ok := cred.(BearerTokenCredential)
	if !ok {
		return nil, fmt.Errorf("bearer token tier: unexpected credential %T", cred)
	}
	userID, found, err := t.tokens.FindBearerToken(ctx, c.Token)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return loadIdentity(ctx, t.users, userID)
}

// loadIdentity re-verifies the account and builds the identity projection.
// A missing user is a non-match, not an error.
func loadIdentity(ctx context.Context, users repository.UserRepository, userID int64) (*ResolvedIdentity, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, nil
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d: %w", userID, ErrAccountInactive)
	}
	return &ResolvedIdentity{
		UserID:            user.ID,
		Username:          user.Username,
		Email:             user.Email,
		RoleID:            user.RoleID,
		PreferredLanguage: user.PreferredLanguage,
		IsActive:          user.IsActive,
	}, nil
}
