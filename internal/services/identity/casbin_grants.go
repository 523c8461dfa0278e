package identity

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/authresolve/internal/auth"
	casbinbunadapter "github.com/terraconstructs/authresolve/internal/auth/bunadapter"
)

// CasbinGrantSource exposes legacy policy-engine grants:
//
//	g, user:<id>, role:<id>   role membership
//	p, role:<id>, <perm key>  role permission
//
// Each call loads only the rows for its subject from casbin_rules, so a
// revoked rule stops granting on the next request.
type CasbinGrantSource struct {
	db *bun.DB
}

// NewCasbinGrantSource reads grants from the casbin_rules table of db.
func NewCasbinGrantSource(db *bun.DB) *CasbinGrantSource {
	return &CasbinGrantSource{db: db}
}

func (s *CasbinGrantSource) Name() string { return "casbin" }

func (s *CasbinGrantSource) UserRoleMemberships(_ context.Context, userID int64) ([]int64, error) {
	subject := auth.UserSubject(userID)
	enforcer, err := auth.LoadEnforcer(s.db, &casbinbunadapter.Filter{G: []string{subject}})
	if err != nil {
		return nil, fmt.Errorf("load groupings for user %d: %w", userID, err)
	}

	roles, err := enforcer.GetRolesForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("get roles for user %d: %w", userID, err)
	}
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		if id, ok := auth.ParseRoleSubject(r); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *CasbinGrantSource) RolePermissions(_ context.Context, roleID int64) ([]string, error) {
	subject := auth.RoleSubject(roleID)
	enforcer, err := auth.LoadEnforcer(s.db, &casbinbunadapter.Filter{P: []string{subject}})
	if err != nil {
		return nil, fmt.Errorf("load policies for role %d: %w", roleID, err)
	}

	policies, err := enforcer.GetPermissionsForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("get permissions for role %d: %w", roleID, err)
	}
	keys := make([]string, 0, len(policies))
	for _, p := range policies {
		if len(p) > 1 && p[1] != "" {
			keys = append(keys, p[1])
		}
	}
	return keys, nil
}
