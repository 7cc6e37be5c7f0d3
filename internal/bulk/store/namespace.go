package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Namespacer resolves a tenant id to the schema holding that tenant's
// logical partition. It is passed into the query builder as an explicit
// collaborator; tenant input never reaches SQL text unvalidated.
type Namespacer interface {
	Resolve(tenantID string) (string, error)
}

var schemaPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// StatePrefix namespaces by the first dot-segment of the tenant id, the
// convention for hierarchical tenants like "ke.nairobi": every tenant under
// one root shares a schema.
type StatePrefix struct{}

func (StatePrefix) Resolve(tenantID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("empty tenant id")
	}
	schema, _, _ := strings.Cut(tenantID, ".")
	schema = strings.ToLower(schema)
	if !schemaPattern.MatchString(schema) {
		return "", fmt.Errorf("tenant id %q does not resolve to a valid schema", tenantID)
	}
	return schema, nil
}

// Static always resolves to one fixed schema, for single-schema deployments
// and tests.
type Static string

func (s Static) Resolve(string) (string, error) {
	schema := string(s)
	if !schemaPattern.MatchString(schema) {
		return "", fmt.Errorf("invalid static schema %q", schema)
	}
	return schema, nil
}
