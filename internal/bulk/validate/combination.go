package validate

import (
	"context"
	"log/slog"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
)

// CombinationFinder fetches stored link entities by their composite key.
type CombinationFinder[T model.Entity] interface {
	FindByCombination(ctx context.Context, tenantID string, keys []string) ([]T, error)
}

// UniqueCombination enforces composite-key uniqueness for many-to-many link
// entities (e.g. project↔facility), both within the batch and against the
// store. A stored row claiming the same combination is a conflict unless it
// is the same row resubmitted, which is an idempotent no-op rather than an
// error.
type UniqueCombination[T model.Entity] struct {
	key    func(T) string
	finder CombinationFinder[T]
	logger *slog.Logger
}

// NewUniqueCombination builds the validator. key derives the composite key
// from one entity; an empty key skips the entity.
func NewUniqueCombination[T model.Entity](key func(T) string, finder CombinationFinder[T], logger *slog.Logger) *UniqueCombination[T] {
	return &UniqueCombination[T]{key: key, finder: finder, logger: logger}
}

func (*UniqueCombination[T]) Name() string { return "unique_combination" }

func (v *UniqueCombination[T]) Validate(ctx context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	clean := CleanSubset(req.Entities, acc)
	if len(clean) == 0 {
		return found
	}

	// Within the batch: first claim wins, later ones conflict.
	seen := make(map[string]struct{})
	byTenant := make(map[string][]T)
	for _, e := range clean {
		key := v.key(e)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			found.Add(e, errs.ForDuplicateMapping(key))
			continue
		}
		seen[key] = struct{}{}
		byTenant[e.GetTenantID()] = append(byTenant[e.GetTenantID()], e)
	}

	// Against the store, one batched query per tenant.
	for tenantID, group := range byTenant {
		keys := make([]string, 0, len(group))
		for _, e := range group {
			keys = append(keys, v.key(e))
		}
		stored, err := v.finder.FindByCombination(ctx, tenantID, keys)
		if err != nil {
			v.logger.ErrorContext(ctx, "combination lookup failed", "tenant", tenantID, "error", err)
			for _, e := range group {
				found.Add(e, errs.ForNetworkError("store", err))
			}
			continue
		}

		claimed := make(map[string]T, len(stored))
		for _, s := range stored {
			claimed[v.key(s)] = s
		}
		for _, e := range group {
			owner, ok := claimed[v.key(e)]
			if !ok {
				continue
			}
			if sameRow(e, owner) {
				// Exact resubmission of an existing row: idempotent no-op.
				continue
			}
			found.Add(e, errs.ForDuplicateMapping(v.key(e)))
		}
	}
	return found
}

// sameRow reports whether the submitted entity is the stored row itself,
// addressed by id or client reference id.
func sameRow[T model.Entity](submitted, stored T) bool {
	if id := submitted.GetID(); id != "" && id == stored.GetID() {
		return true
	}
	if ref := submitted.GetClientReferenceID(); ref != "" && ref == stored.GetClientReferenceID() {
		return true
	}
	return false
}
