package validate

import (
	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
)

// ErrorMap accumulates validation failures keyed by entity identity within
// the batch. Entities have no server id before enrichment, so the map key is
// the entity pointer itself.
type ErrorMap[T model.Entity] map[T][]errs.Error

// Add attaches an error to an entity. Errors are set-like per entity per
// code: re-validating an already-errored entity never duplicates an error.
func (m ErrorMap[T]) Add(entity T, e errs.Error) {
	for _, existing := range m[entity] {
		if existing.Code == e.Code {
			return
		}
	}
	m[entity] = append(m[entity], e)
}

// Merge folds another map into this one, preserving the per-code dedupe.
func (m ErrorMap[T]) Merge(other ErrorMap[T]) {
	for entity, errors := range other {
		for _, e := range errors {
			m.Add(entity, e)
		}
	}
}

// HasErrors reports whether the entity has accumulated any error so far.
func (m ErrorMap[T]) HasErrors(entity T) bool {
	return len(m[entity]) > 0
}

// CleanSubset returns the entities not yet carrying errors, in batch order.
// Every validator operates only on this working set; the chain itself never
// drops entities from the batch.
func CleanSubset[T model.Entity](entities []T, acc ErrorMap[T]) []T {
	clean := make([]T, 0, len(entities))
	for _, e := range entities {
		if !acc.HasErrors(e) {
			clean = append(clean, e)
		}
	}
	return clean
}
