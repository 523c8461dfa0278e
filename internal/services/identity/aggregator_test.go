package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource is a GrantSource backed by fixed maps.
type staticSource struct {
	name        string
	memberships map[int64][]int64
	perms       map[int64][]string
	err         error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) UserRoleMemberships(_ context.Context, userID int64) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.memberships[userID], nil
}

func (s *staticSource) RolePermissions(_ context.Context, roleID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[roleID], nil
}

func newTestAggregator(grants *mockGrants, extra ...GrantSource) *PermissionAggregator {
	sources := append([]GrantSource{NewRelationalGrantSource(grants)}, extra...)
	return NewPermissionAggregator(sources, grants, DefaultSafetyNetPolicy(), nil)
}

func TestAggregate_UnionsAndDeduplicates(t *testing.T) {
	grants := newMockGrants()
	grants.rolePerms[2] = []string{"view_orders", "manage_orders"}
	grants.rolePerms[3] = []string{"manage_orders", "manage_products"}
	grants.memberships[42] = []int64{3, 2}
	grants.roleKeys[2] = "vendor"
	grants.roleKeys[3] = "catalog"

	legacy := &staticSource{
		name:        "legacy",
		memberships: map[int64][]int64{42: {3, 8}},
		perms:       map[int64][]string{8: {"export_reports"}, 3: {"manage_products"}},
	}

	agg := newTestAggregator(grants, legacy)
	result, err := agg.Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(2)})
	require.NoError(t, err)

	assert.Equal(t, []RoleGrant{
		{RoleID: 2, Key: "vendor"},
		{RoleID: 3, Key: "catalog"},
		{RoleID: 8, Key: ""},
	}, result.Roles)
	assert.Equal(t, []string{"export_reports", "manage_orders", "manage_products", "view_orders"}, result.Permissions.Sorted())
	assert.Equal(t, NewKeySet("vendor", "catalog"), result.RoleKeys())
	assert.False(t, result.SafetyNetApplied)
	assert.Empty(t, result.FailedSources)
}

func TestAggregate_Idempotent(t *testing.T) {
	grants := newMockGrants()
	grants.rolePerms[2] = []string{"b", "a"}
	grants.memberships[42] = []int64{4}
	grants.rolePerms[4] = []string{"c", "a"}

	agg := newTestAggregator(grants)
	identity := &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(2)}

	first, err := agg.Aggregate(context.Background(), identity)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregate_SafetyNetScope(t *testing.T) {
	tests := []struct {
		name      string
		roleID    *int64
		perms     map[int64][]string
		wantNet   bool
		wantPerms []string
	}{
		{
			name:      "bootstrap role with no grants",
			roleID:    int64Ptr(1),
			wantNet:   true,
			wantPerms: []string{"manage_orders", "manage_products", "manage_roles", "manage_settings", "manage_users", "manage_vendors"},
		},
		{
			name:      "bootstrap role with explicit grants",
			roleID:    int64Ptr(1),
			perms:     map[int64][]string{1: {"view_dashboard"}},
			wantPerms: []string{"view_dashboard"},
		},
		{
			name:      "other role with no grants",
			roleID:    int64Ptr(2),
			wantPerms: []string{},
		},
		{
			name:      "no primary role",
			wantPerms: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants := newMockGrants()
			if tt.perms != nil {
				grants.rolePerms = tt.perms
			}
			result, err := newTestAggregator(grants).Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: tt.roleID})
			require.NoError(t, err)
			assert.Equal(t, tt.wantNet, result.SafetyNetApplied)
			assert.Equal(t, tt.wantPerms, result.Permissions.Sorted())
		})
	}
}

func TestAggregate_SafetyNetIgnoresBootstrapMembership(t *testing.T) {
	grants := newMockGrants()
	grants.memberships[42] = []int64{1}

	result, err := newTestAggregator(grants).Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(2)})
	require.NoError(t, err)
	assert.False(t, result.SafetyNetApplied)
	assert.Empty(t, result.Permissions)
}

func TestAggregate_SafetyNetDisabled(t *testing.T) {
	grants := newMockGrants()
	policy := DefaultSafetyNetPolicy()
	policy.Enabled = false
	agg := NewPermissionAggregator([]GrantSource{NewRelationalGrantSource(grants)}, grants, policy, nil)

	result, err := agg.Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(1)})
	require.NoError(t, err)
	assert.False(t, result.SafetyNetApplied)
	assert.Empty(t, result.Permissions)
}

func TestAggregate_SourceFailureIsNonFatal(t *testing.T) {
	grants := newMockGrants()
	grants.rolePerms[2] = []string{"view_orders"}
	broken := &staticSource{name: "legacy", err: errBackend}

	result, err := newTestAggregator(grants, broken).Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"view_orders"}, result.Permissions.Sorted())
	assert.Equal(t, []string{"legacy", "legacy"}, result.FailedSources)
}

func TestAggregate_AllSourcesDownForBootstrapRole(t *testing.T) {
	grants := newMockGrants()
	grants.permErr = errBackend
	grants.membershipErr = errBackend

	result, err := newTestAggregator(grants).Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(1)})
	require.NoError(t, err)
	assert.True(t, result.SafetyNetApplied)
	assert.NotEmpty(t, result.FailedSources)
}

func TestAggregate_RoleDirectoryFailureKeepsRoles(t *testing.T) {
	grants := newMockGrants()
	grants.roleKeysErr = errBackend
	grants.rolePerms[2] = []string{"view_orders"}

	result, err := newTestAggregator(grants).Aggregate(context.Background(), &ResolvedIdentity{UserID: 42, RoleID: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []RoleGrant{{RoleID: 2}}, result.Roles)
	assert.Empty(t, result.RoleKeys())
	assert.True(t, result.Permissions.Has("view_orders"))
}

func TestAggregate_MissingUserID(t *testing.T) {
	agg := newTestAggregator(newMockGrants())

	_, err := agg.Aggregate(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingUserID)

	_, err = agg.Aggregate(context.Background(), &ResolvedIdentity{RoleID: int64Ptr(1)})
	require.ErrorIs(t, err, ErrMissingUserID)
}

func TestSafetyNetPolicy_Apply(t *testing.T) {
	policy := SafetyNetPolicy{Enabled: true, BootstrapRoleID: 7, Keys: []string{"a", "b"}}

	perms, applied := policy.Apply(int64Ptr(7), KeySet{})
	assert.True(t, applied)
	assert.Equal(t, NewKeySet("a", "b"), perms)

	existing := NewKeySet("x")
	perms, applied = policy.Apply(int64Ptr(7), existing)
	assert.False(t, applied)
	assert.Equal(t, existing, perms)

	_, applied = policy.Apply(int64Ptr(1), KeySet{})
	assert.False(t, applied)

	_, applied = policy.Apply(nil, KeySet{})
	assert.False(t, applied)

	policy.Keys = nil
	_, applied = policy.Apply(int64Ptr(7), KeySet{})
	assert.False(t, applied)
}
