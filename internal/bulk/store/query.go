package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"healthreg/internal/bulk/model"
)

// Clause is one kind-specific predicate contributed by a search type on top
// of the common criteria. Column names come from the kind's own mapping,
// never from request input.
type Clause struct {
	Column string
	Op     string // "=", ">=", "<=", "IN"
	Value  any
}

// Searchable is implemented by per-kind search types: the shared criteria
// plus whatever extra columns that kind filters on.
type Searchable interface {
	SearchBase() model.SearchCriteria
	Clauses() []Clause
}

// queryBuilder accumulates WHERE predicates with positional args.
type queryBuilder struct {
	conds []string
	args  []any
}

func (b *queryBuilder) cond(cond string, args ...any) {
	for _, a := range args {
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(b.args)+1), 1)
		b.args = append(b.args, a)
	}
	b.conds = append(b.conds, cond)
}

func (b *queryBuilder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// buildSearch renders the predicate shared by Find and Count. The tenant
// predicate always comes first; deleted rows are excluded unless asked for,
// and lastChangedSince is a strict lower bound.
func buildSearch(criteria Searchable) (*queryBuilder, error) {
	base := criteria.SearchBase()
	if base.TenantID == "" {
		return nil, fmt.Errorf("search requires a tenant id")
	}

	b := &queryBuilder{}
	b.cond("tenant_id = ?", base.TenantID)
	if len(base.IDs) > 0 {
		b.cond("id = ANY(?)", pq.Array(base.IDs))
	}
	if len(base.ClientReferenceIDs) > 0 {
		b.cond("client_reference_id = ANY(?)", pq.Array(base.ClientReferenceIDs))
	}
	for _, c := range criteria.Clauses() {
		switch c.Op {
		case "IN":
			vals, ok := c.Value.([]string)
			if !ok || len(vals) == 0 {
				continue
			}
			b.cond(c.Column+" = ANY(?)", pq.Array(vals))
		case "=", ">", ">=", "<", "<=":
			b.cond(c.Column+" "+c.Op+" ?", c.Value)
		default:
			return nil, fmt.Errorf("unsupported clause op %q on column %q", c.Op, c.Column)
		}
	}
	if !base.IncludeDeleted {
		b.conds = append(b.conds, "is_deleted = false")
	}
	if base.LastChangedSince > 0 {
		b.cond("last_modified_time > ?", base.LastChangedSince)
	}
	return b, nil
}
