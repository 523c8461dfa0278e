package identity

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/authresolve/internal/telemetry"
)

// Tier is one step of the identity resolution chain.
//
// Resolve return values:
//   - (identity, nil): this tier resolved the caller; the chain stops
//   - (nil, nil): credential did not match; try the next tier
//   - (nil, ErrAccountInactive): the account exists but is disabled; the chain stops
//   - (nil, other error): the tier failed; it is logged and the next tier runs
type Tier interface {
	Name() ResolvedVia
	// Extract returns the tier's credential, or false when the request or
	// session does not carry one. session may be nil.
	Extract(session *ActiveSession, creds RequestCredentials) (Credential, bool)
	Resolve(ctx context.Context, cred Credential) (*ResolvedIdentity, error)
}

// IdentityResolutionChain runs tiers in strict precedence. The first tier
// producing an identity wins; results are never merged across tiers.
type IdentityResolutionChain struct {
	tiers []Tier
}

// NewIdentityResolutionChain creates a chain over tiers in the given order.
func NewIdentityResolutionChain(tiers ...Tier) *IdentityResolutionChain {
	return &IdentityResolutionChain{tiers: tiers}
}

// Resolve returns (nil, nil) for an anonymous caller.
func (c *IdentityResolutionChain) Resolve(ctx context.Context, session *ActiveSession, creds RequestCredentials) (*ResolvedIdentity, error) {
	for _, tier := range c.tiers {
		cred, ok := tier.Extract(session, creds)
		if !ok {
			continue
		}

		identity, err := c.runTier(ctx, tier, cred)
		if errors.Is(err, ErrAccountInactive) {
			return nil, err
		}
		if err != nil {
			log.Warn().
				Str("tier", string(tier.Name())).
				Str("session_name", sessionName(session)).
				Err(err).
				Msg("identity tier failed, trying next tier")
			continue
		}
		if identity != nil {
			identity.ResolvedVia = tier.Name()
			return identity, nil
		}
	}
	return nil, nil
}

func (c *IdentityResolutionChain) runTier(ctx context.Context, tier Tier, cred Credential) (*ResolvedIdentity, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.tier."+string(tier.Name()),
		attribute.String(telemetry.AttrTier, string(tier.Name())),
	)
	defer span.End()

	identity, err := tier.Resolve(ctx, cred)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if identity == nil {
		telemetry.AddEvent(span, "tier.no_match")
		return nil, nil
	}
	span.SetAttributes(attribute.Int64(telemetry.AttrUserID, identity.UserID))
	return identity, nil
}

func sessionName(s *ActiveSession) string {
	if s == nil {
		return ""
	}
	return s.Name
}
