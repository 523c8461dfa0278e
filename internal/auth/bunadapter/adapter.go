// Package bunadapter is a read-only casbin persist.Adapter over bun.
package bunadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// Forked from github.com/msales/casbin-bun-adapter at v1.0.7: no schema
// qualifier on the table name, no surrogate id, and every write path removed.

// ErrReadOnly is returned by every mutating adapter method.
var ErrReadOnly = errors.New("casbin adapter is read-only")

// Filter represents adapter filter. A nil P or G skips that section; a
// non-nil slice matches v0..v5 positionally, empty values matching anything.
type Filter struct {
	P []string
	G []string
}

// Adapter loads policy lines from the casbin_rules table.
type Adapter struct {
	db       *bun.DB
	filtered bool
}

var _ persist.FilteredAdapter = (*Adapter)(nil)

// NewAdapter creates an Adapter sharing the given connection pool.
// Expects the table to exist.
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// LoadPolicy loads policy from the database.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*CasbinRule

	if err := a.db.NewSelect().Model(&rules).Scan(context.Background()); err != nil {
		return fmt.Errorf("failed to load policy from adapter db: %w", err)
	}

	if err := loadRules(rules, m); err != nil {
		return err
	}

	a.filtered = false
	return nil
}

// LoadFilteredPolicy loads only policies that match the filter.
func (a *Adapter) LoadFilteredPolicy(m model.Model, filter any) error {
	f, ok := filter.(*Filter)
	if !ok || f == nil {
		return fmt.Errorf("invalid filter type: %T", filter)
	}

	if err := a.loadSection(m, "p", f.P); err != nil {
		return err
	}
	if err := a.loadSection(m, "g", f.G); err != nil {
		return err
	}

	a.filtered = true
	return nil
}

func (a *Adapter) loadSection(m model.Model, ptype string, values []string) error {
	if values == nil {
		return nil
	}
	var rules []*CasbinRule
	query, err := buildQuery(a.db.NewSelect().Model(&rules).Where("ptype = ?", ptype), values)
	if err != nil {
		return err
	}
	if err := query.Scan(context.Background()); err != nil {
		return fmt.Errorf("failed to load filtered %s rules: %w", ptype, err)
	}
	return loadRules(rules, m)
}

// IsFiltered returns true if the loaded policy has been filtered.
func (a *Adapter) IsFiltered() bool {
	return a.filtered
}

// SavePolicy is not supported.
func (a *Adapter) SavePolicy(model.Model) error { return ErrReadOnly }

// AddPolicy is not supported.
func (a *Adapter) AddPolicy(string, string, []string) error { return ErrReadOnly }

// RemovePolicy is not supported.
func (a *Adapter) RemovePolicy(string, string, []string) error { return ErrReadOnly }

// RemoveFilteredPolicy is not supported.
func (a *Adapter) RemoveFilteredPolicy(string, string, int, ...string) error { return ErrReadOnly }

func loadRules(rules []*CasbinRule, m model.Model) error {
	for _, r := range rules {
		if _, last := r.toValueSlice(); last == -1 {
			continue // skip empty rule
		}
		if err := persist.LoadPolicyLine(r.String(), m); err != nil {
			return fmt.Errorf("load policy line %q: %w", r.String(), err)
		}
	}
	return nil
}

func buildQuery(query *bun.SelectQuery, values []string) (*bun.SelectQuery, error) {
	columns := []string{"v0", "v1", "v2", "v3", "v4", "v5"}
	if len(values) > len(columns) {
		return nil, fmt.Errorf("filter has more values than expected, should not exceed 6 values")
	}
	for i, v := range values {
		if v == "" {
			continue
		}
		query = query.Where("? = ?", bun.Ident(columns[i]), v)
	}
	return query, nil
}

// CasbinRule represents adapter rule in Casbin.
type CasbinRule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	// Composite primary key on all fields; no surrogate id.
	Ptype string `bun:",pk,type:varchar(100),notnull"` // 'p' (policy) or 'g' (grouping)
	V0    string `bun:",pk,type:varchar(255)"`         // Role subject (p) or user subject (g)
	V1    string `bun:",pk,type:varchar(255)"`         // Permission key (p) or role subject (g)
	V2    string `bun:",pk,type:varchar(255)"`
	V3    string `bun:",pk,type:varchar(255)"`
	V4    string `bun:",pk,type:varchar(255)"`
	V5    string `bun:",pk,type:varchar(255)"`
}

// NewCasbinRule builds a rule row from a policy line.
func NewCasbinRule(ptype string, rule ...string) *CasbinRule {
	line := &CasbinRule{Ptype: ptype}
	fields := []*string{&line.V0, &line.V1, &line.V2, &line.V3, &line.V4, &line.V5}
	for i := 0; i < len(rule) && i < len(fields); i++ {
		*fields[i] = rule[i]
	}
	return line
}

// String renders the rule as a casbin policy line, keeping empty middle fields.
func (r *CasbinRule) String() string {
	values, lastNonEmpty := r.toValueSlice()

	var sb strings.Builder
	sb.WriteString(r.Ptype)
	for i := 0; i <= lastNonEmpty; i++ {
		sb.WriteString(", ")
		sb.WriteString(values[i])
	}
	return sb.String()
}

func (r *CasbinRule) toValueSlice() ([]string, int) {
	values := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	lastNonEmpty := -1
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			lastNonEmpty = i
			break
		}
	}
	return values, lastNonEmpty
}
