package validate

import (
	"context"

	"healthreg/internal/bulk/model"
)

// FinderLookup adapts a local store read into a RefLookup, for referenced
// kinds this service owns itself. Callers may reference the parent by server
// id or by client reference id, so both columns are probed and the union of
// the found rows' identifiers is returned.
type FinderLookup[P model.Entity] struct {
	finder Finder[P]
}

func NewFinderLookup[P model.Entity](finder Finder[P]) *FinderLookup[P] {
	return &FinderLookup[P]{finder: finder}
}

func (l *FinderLookup[P]) ExistingIDs(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	seen := make(map[string]struct{})
	var known []string
	for _, field := range []string{model.FieldID, model.FieldClientReferenceID} {
		found, err := l.finder.FindByID(ctx, tenantID, ids, field, false)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			for _, id := range []string{p.GetID(), p.GetClientReferenceID()} {
				if id == "" {
					continue
				}
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					known = append(known, id)
				}
			}
		}
	}
	return known, nil
}
