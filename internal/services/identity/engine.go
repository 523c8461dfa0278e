package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/authresolve/internal/config"
	"github.com/terraconstructs/authresolve/internal/repository"
	"github.com/terraconstructs/authresolve/internal/telemetry"
)

// EngineDependencies are the read-only stores the engine consults.
type EngineDependencies struct {
	Sessions SessionLoader
	Users    repository.UserRepository
	Tokens   repository.TokenRepository
	Grants   repository.GrantRepository

	// ExtraGrantSources are consulted after the relational tables.
	ExtraGrantSources []GrantSource

	// Metrics may be nil.
	Metrics *telemetry.ResolutionMetrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// EngineConfig tunes resolution.
type EngineConfig struct {
	DefaultSessionName   string
	CreateDefaultSession bool
	TokenLocations       []config.TokenLocation
	SafetyNet            SafetyNetPolicy
}

// EngineConfigFromConfig maps application configuration onto the engine.
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		DefaultSessionName:   cfg.Session.DefaultName,
		CreateDefaultSession: cfg.Session.CreateDefault,
		TokenLocations:       slices.Clone(cfg.Tokens.Locations),
		SafetyNet: SafetyNetPolicy{
			Enabled:         cfg.Permissions.SafetyNet.Enabled,
			BootstrapRoleID: cfg.Permissions.BootstrapRoleID,
			Keys:            slices.Clone(cfg.Permissions.SafetyNet.Keys),
		},
	}
}

// Engine wires affinity, the identity chain and the aggregator together.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	affinity   *SessionAffinityResolver
	chain      *IdentityResolutionChain
	aggregator *PermissionAggregator
	metrics    *telemetry.ResolutionMetrics
	now        func() time.Time
}

// NewEngine validates dependencies and builds the default tier order.
func NewEngine(deps EngineDependencies, cfg EngineConfig) (*Engine, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("identity engine: session loader is required")
	case deps.Users == nil:
		return nil, errors.New("identity engine: user repository is required")
	case deps.Tokens == nil:
		return nil, errors.New("identity engine: token repository is required")
	case deps.Grants == nil:
		return nil, errors.New("identity engine: grant repository is required")
	case cfg.DefaultSessionName == "":
		return nil, errors.New("identity engine: default session name is required")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	sources := append([]GrantSource{NewRelationalGrantSource(deps.Grants)}, deps.ExtraGrantSources...)

	return &Engine{
		affinity: NewSessionAffinityResolver(deps.Sessions, cfg.DefaultSessionName, cfg.CreateDefaultSession),
		chain: NewIdentityResolutionChain(
			NewSnapshotTier(),
			NewSessionLookupTier(deps.Users),
			NewPersistentTokenTier(deps.Tokens, deps.Users, cfg.TokenLocations),
			NewBearerTokenTier(deps.Tokens, deps.Users),
		),
		aggregator: NewPermissionAggregator(sources, deps.Grants, cfg.SafetyNet, deps.Metrics),
		metrics:    deps.Metrics,
		now:        now,
	}, nil
}

// Resolve computes the request's AuthContext. When the context carries a
// resolution cache (see WithResolutionCache) the first call computes and
// every later call returns the memoized result without touching any store.
//
// An anonymous caller yields an AuthContext with a nil Identity and no error.
// The only errors are ErrAccountInactive and ErrMissingUserID.
func (e *Engine) Resolve(ctx context.Context, in RequestInput) (*AuthContext, error) {
	cache := cacheFromContext(ctx)
	if cache == nil {
		return e.resolve(ctx, in)
	}
	return cache.memoize(func() (*AuthContext, error) {
		return e.resolve(ctx, in)
	})
}

// RequireAuthContext resolves the request and rejects anonymous callers
// with ErrUnauthorized.
func (e *Engine) RequireAuthContext(ctx context.Context, in RequestInput) (*AuthContext, error) {
	auth, err := e.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	if !auth.IsAuthenticated() {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrIdentityUnresolved)
	}
	return auth, nil
}

func (e *Engine) resolve(ctx context.Context, in RequestInput) (*AuthContext, error) {
	requestID := in.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.Engine.Resolve",
		attribute.String("request.id", requestID),
	)
	defer span.End()

	session, err := e.affinity.Resolve(ctx, in.Candidates)
	if err != nil && !errors.Is(err, ErrNoActiveSession) {
		telemetry.RecordError(span, err)
		return nil, err
	}

	identity, err := e.chain.Resolve(ctx, session, in.Credentials)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Info().Str("request_id", requestID).Err(err).Msg("identity rejected")
		return nil, err
	}

	auth := &AuthContext{
		Identity:    identity,
		Roles:       KeySet{},
		Permissions: KeySet{},
		Session:     session,
		ComputedAt:  e.now(),
		RequestID:   requestID,
	}

	if identity == nil {
		telemetry.AddEvent(span, "identity.anonymous")
		e.metrics.RecordResolution(ctx, "")
		return auth, nil
	}

	grants, err := e.aggregator.Aggregate(ctx, identity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	auth.Roles = grants.RoleKeys()
	auth.RoleGrants = grants.Roles
	auth.Permissions = grants.Permissions
	auth.SafetyNetApplied = grants.SafetyNetApplied

	span.SetAttributes(
		attribute.Int64(telemetry.AttrUserID, identity.UserID),
		attribute.String(telemetry.AttrResolvedVia, string(identity.ResolvedVia)),
	)
	e.metrics.RecordResolution(ctx, string(identity.ResolvedVia))

	log.Debug().
		Str("request_id", requestID).
		Int64("user_id", identity.UserID).
		Str("resolved_via", string(identity.ResolvedVia)).
		Int("roles", len(auth.Roles)).
		Int("permissions", len(auth.Permissions)).
		Msg("identity resolved")

	return auth, nil
}
