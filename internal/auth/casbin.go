// Package auth wires the legacy policy-engine grants into the resolution
// engine. Every enforcer built here reads casbin_rules afresh and nothing
// here writes the table.
package auth

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	casbinbunadapter "github.com/terraconstructs/authresolve/internal/auth/bunadapter"
	"github.com/uptrace/bun"
)

//go:embed model.conf
var casbinModelContent string

// Subject prefixes used in casbin_rules rows:
//
//	p, role:3, manage_vendors
//	g, user:42, role:3
const (
	UserSubjectPrefix = "user:"
	RoleSubjectPrefix = "role:"
)

// NewModel parses the embedded RBAC model.
func NewModel() (model.Model, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	return m, nil
}

// InitEnforcer loads every casbin_rules row into a read-only enforcer. It is
// used at startup to check the table is readable.
func InitEnforcer(db *bun.DB) (*casbin.Enforcer, error) {
	m, err := NewModel()
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, casbinbunadapter.NewAdapter(db))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(false)
	return enforcer, nil
}

// LoadEnforcer builds a read-only enforcer holding only the casbin_rules rows
// matched by filter. The enforcer is not meant to outlive the caller.
func LoadEnforcer(db *bun.DB, filter *casbinbunadapter.Filter) (*casbin.Enforcer, error) {
	m, err := NewModel()
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	enforcer.SetAdapter(casbinbunadapter.NewAdapter(db))
	enforcer.EnableAutoSave(false)

	if err := enforcer.LoadFilteredPolicy(filter); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}
	return enforcer, nil
}

// UserSubject formats the casbin subject for a user id.
func UserSubject(userID int64) string {
	return UserSubjectPrefix + strconv.FormatInt(userID, 10)
}

// RoleSubject formats the casbin subject for a role id.
func RoleSubject(roleID int64) string {
	return RoleSubjectPrefix + strconv.FormatInt(roleID, 10)
}

// ParseRoleSubject extracts the numeric id from "role:<id>".
func ParseRoleSubject(subject string) (int64, bool) {
	raw, ok := strings.CutPrefix(subject, RoleSubjectPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
