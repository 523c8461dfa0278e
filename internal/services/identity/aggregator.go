package identity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/authresolve/internal/repository"
	"github.com/terraconstructs/authresolve/internal/telemetry"
)

// GrantSource is one mechanism that assigns roles and permissions.
type GrantSource interface {
	Name() string
	// UserRoleMemberships returns the role ids granted to the user besides
	// the primary role column.
	UserRoleMemberships(ctx context.Context, userID int64) ([]int64, error)
	RolePermissions(ctx context.Context, roleID int64) ([]string, error)
}

// RoleDirectory maps role ids to role keys.
type RoleDirectory interface {
	GetRoleKeys(ctx context.Context, roleIDs []int64) (map[int64]string, error)
}

// RelationalGrantSource reads the role_permissions and user_roles tables.
type RelationalGrantSource struct {
	repo repository.GrantRepository
}

// NewRelationalGrantSource wraps a grant repository.
func NewRelationalGrantSource(repo repository.GrantRepository) *RelationalGrantSource {
	return &RelationalGrantSource{repo: repo}
}

func (s *RelationalGrantSource) Name() string { return "relational" }

func (s *RelationalGrantSource) UserRoleMemberships(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.GetUserRoleMemberships(ctx, userID)
}

func (s *RelationalGrantSource) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	return s.repo.GetRolePermissions(ctx, roleID)
}

// Grants is the aggregated result for one identity.
type Grants struct {
	// Roles lists the primary role first, then memberships in source order.
	Roles            []RoleGrant
	Permissions      KeySet
	SafetyNetApplied bool
	// FailedSources names every source read that failed and contributed nothing.
	FailedSources []string
}

// RoleKeys returns the set of known role keys.
func (g *Grants) RoleKeys() KeySet {
	keys := make(KeySet, len(g.Roles))
	for _, r := range g.Roles {
		keys.Add(r.Key)
	}
	return keys
}

// PermissionAggregator unions the grants of every source for an identity.
type PermissionAggregator struct {
	sources   []GrantSource
	directory RoleDirectory
	safetyNet SafetyNetPolicy
	metrics   *telemetry.ResolutionMetrics
}

// NewPermissionAggregator creates an aggregator. directory may be nil, in
// which case roles carry no keys.
func NewPermissionAggregator(sources []GrantSource, directory RoleDirectory, safetyNet SafetyNetPolicy, metrics *telemetry.ResolutionMetrics) *PermissionAggregator {
	return &PermissionAggregator{
		sources:   sources,
		directory: directory,
		safetyNet: safetyNet,
		metrics:   metrics,
	}
}

// Aggregate computes the deduplicated role and permission sets. Source
// failures are logged and contribute nothing; the only error is
// ErrMissingUserID.
func (a *PermissionAggregator) Aggregate(ctx context.Context, identity *ResolvedIdentity) (*Grants, error) {
	if identity == nil || identity.UserID <= 0 {
		return nil, ErrMissingUserID
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.PermissionAggregator.Aggregate",
		attribute.Int64(telemetry.AttrUserID, identity.UserID),
	)
	defer span.End()

	grants := &Grants{Permissions: KeySet{}}

	roleIDs := make([]int64, 0, 4)
	seenRoles := make(map[int64]struct{})
	addRole := func(id int64) {
		if id <= 0 {
			return
		}
		if _, ok := seenRoles[id]; ok {
			return
		}
		seenRoles[id] = struct{}{}
		roleIDs = append(roleIDs, id)
	}

	addRole(identity.PrimaryRoleID())
	for _, src := range a.sources {
		ids, err := a.memberships(ctx, src, identity.UserID)
		if err != nil {
			grants.FailedSources = append(grants.FailedSources, src.Name())
			continue
		}
		for _, id := range ids {
			addRole(id)
		}
	}

	for _, roleID := range roleIDs {
		for _, src := range a.sources {
			keys, err := a.permissions(ctx, src, roleID)
			if err != nil {
				grants.FailedSources = append(grants.FailedSources, src.Name())
				continue
			}
			grants.Permissions.Add(keys...)
		}
	}

	roleKeys := a.roleKeys(ctx, roleIDs)
	grants.Roles = make([]RoleGrant, 0, len(roleIDs))
	for _, id := range roleIDs {
		grants.Roles = append(grants.Roles, RoleGrant{RoleID: id, Key: roleKeys[id]})
	}

	grants.Permissions, grants.SafetyNetApplied = a.safetyNet.Apply(identity.RoleID, grants.Permissions)
	if grants.SafetyNetApplied {
		log.Warn().
			Int64("user_id", identity.UserID).
			Int64("role_id", a.safetyNet.BootstrapRoleID).
			Msg("bootstrap role has no grants, applying safety net permissions")
		a.metrics.RecordSafetyNet(ctx)
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrRoleCount, len(grants.Roles)),
		attribute.Int(telemetry.AttrPermCount, len(grants.Permissions)),
		attribute.Bool(telemetry.AttrSafetyNet, grants.SafetyNetApplied),
	)
	return grants, nil
}

func (a *PermissionAggregator) memberships(ctx context.Context, src GrantSource, userID int64) ([]int64, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.GrantSource.UserRoleMemberships",
		attribute.String(telemetry.AttrGrantSource, src.Name()),
	)
	defer span.End()

	ids, err := src.UserRoleMemberships(ctx, userID)
	if err != nil {
		err = fmt.Errorf("%s memberships for user %d: %w: %w", src.Name(), userID, ErrGrantSourceUnavailable, err)
		a.sourceFailed(ctx, src, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return ids, nil
}

func (a *PermissionAggregator) permissions(ctx context.Context, src GrantSource, roleID int64) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIdentity, "identity.GrantSource.RolePermissions",
		attribute.String(telemetry.AttrGrantSource, src.Name()),
		attribute.Int64("role.id", roleID),
	)
	defer span.End()

	keys, err := src.RolePermissions(ctx, roleID)
	if err != nil {
		err = fmt.Errorf("%s permissions for role %d: %w: %w", src.Name(), roleID, ErrGrantSourceUnavailable, err)
		a.sourceFailed(ctx, src, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return keys, nil
}

func (a *PermissionAggregator) sourceFailed(ctx context.Context, src GrantSource, err error) {
	log.Warn().Str("grant_source", src.Name()).Err(err).Msg("grant source unavailable")
	a.metrics.RecordGrantSourceError(ctx, src.Name())
}

func (a *PermissionAggregator) roleKeys(ctx context.Context, roleIDs []int64) map[int64]string {
	if a.directory == nil || len(roleIDs) == 0 {
		return nil
	}
	keys, err := a.directory.GetRoleKeys(ctx, roleIDs)
	if err != nil {
		log.Warn().Err(err).Msg("role directory unavailable, roles carry no keys")
		a.metrics.RecordGrantSourceError(ctx, "role_directory")
		return nil
	}
	return keys
}
