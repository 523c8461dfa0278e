package identity

import (
	"slices"

	"github.com/terraconstructs/authresolve/internal/config"
)

// SafetyNetPolicy grants a fixed administrative set to a user whose primary
// role is the bootstrap role but whose grants came back empty, so a
// half-migrated grant table cannot lock the bootstrap administrator out.
// It is fail-open by intent and scoped to exactly one role id.
type SafetyNetPolicy struct {
	Enabled         bool
	BootstrapRoleID int64
	Keys            []string
}

// DefaultSafetyNetPolicy is enabled for role 1 with the default key set.
func DefaultSafetyNetPolicy() SafetyNetPolicy {
	return SafetyNetPolicy{
		Enabled:         true,
		BootstrapRoleID: 1,
		Keys:            slices.Clone(config.DefaultSafetyNetKeys),
	}
}

// Apply returns the permission set to use and whether the fixed set was
// substituted. perms is returned unchanged unless it is empty and
// primaryRoleID is the bootstrap role.
func (p SafetyNetPolicy) Apply(primaryRoleID *int64, perms KeySet) (KeySet, bool) {
	if !p.Enabled || p.BootstrapRoleID <= 0 || len(p.Keys) == 0 {
		return perms, false
	}
	if primaryRoleID == nil || *primaryRoleID != p.BootstrapRoleID {
		return perms, false
	}
	if len(perms) > 0 {
		return perms, false
	}
	return NewKeySet(p.Keys...), true
}
