package validate

import (
	"context"
	"log/slog"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
)

// Finder is the read-path store surface the existence and row-version
// validators need. idField is model.FieldID or model.FieldClientReferenceID.
// Lookups are batched: one query per call, never one per entity.
type Finder[T model.Entity] interface {
	FindByID(ctx context.Context, tenantID string, ids []string, idField string, includeDeleted bool) ([]T, error)
}

// Existence verifies that update/delete targets exist in the store. Entities
// found but soft-deleted are terminal and reported as ALREADY_DELETED;
// missing ones as NON_EXISTENT_ENTITY. A failed store read marks the whole
// tenant group with NETWORK_ERROR since the lookup is all-or-nothing.
type Existence[T model.Entity] struct {
	finder Finder[T]
	logger *slog.Logger
}

func NewExistence[T model.Entity](finder Finder[T], logger *slog.Logger) *Existence[T] {
	return &Existence[T]{finder: finder, logger: logger}
}

func (*Existence[T]) Name() string { return "existence" }

func (v *Existence[T]) Validate(ctx context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	clean := CleanSubset(req.Entities, acc)
	if len(clean) == 0 {
		return found
	}

	idField := model.IDFieldFor(clean)
	for tenantID, group := range model.GroupByTenant(clean) {
		var keyed []T
		for _, e := range group {
			if model.Key(e, idField) == "" {
				found.Add(e, errs.ForNonExistentEntity(""))
				continue
			}
			keyed = append(keyed, e)
		}
		if len(keyed) == 0 {
			continue
		}

		// includeDeleted so a soft-deleted row surfaces as ALREADY_DELETED
		// instead of "does not exist".
		existing, err := v.finder.FindByID(ctx, tenantID, model.IDList(keyed, idField), idField, true)
		if err != nil {
			v.logger.ErrorContext(ctx, "existence lookup failed", "tenant", tenantID, "error", err)
			for _, e := range keyed {
				found.Add(e, errs.ForNetworkError("store", err))
			}
			continue
		}

		byKey := model.ByKey(existing, idField)
		for _, e := range keyed {
			key := model.Key(e, idField)
			stored, ok := byKey[key]
			if !ok {
				found.Add(e, errs.ForNonExistentEntity(key))
				continue
			}
			if stored.GetIsDeleted() {
				found.Add(e, errs.ForAlreadyDeleted(key))
			}
		}
	}
	return found
}

// RowVersion enforces optimistic concurrency on the update/delete path: the
// client-supplied row version must equal the stored one. It runs after
// Existence, so every clean entity is known to exist.
type RowVersion[T model.Entity] struct {
	finder Finder[T]
	logger *slog.Logger
}

func NewRowVersion[T model.Entity](finder Finder[T], logger *slog.Logger) *RowVersion[T] {
	return &RowVersion[T]{finder: finder, logger: logger}
}

func (*RowVersion[T]) Name() string { return "row_version" }

func (v *RowVersion[T]) Validate(ctx context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	clean := CleanSubset(req.Entities, acc)
	if len(clean) == 0 {
		return found
	}

	idField := model.IDFieldFor(clean)
	for tenantID, group := range model.GroupByTenant(clean) {
		existing, err := v.finder.FindByID(ctx, tenantID, model.IDList(group, idField), idField, false)
		if err != nil {
			v.logger.ErrorContext(ctx, "row version lookup failed", "tenant", tenantID, "error", err)
			for _, e := range group {
				found.Add(e, errs.ForNetworkError("store", err))
			}
			continue
		}

		byKey := model.ByKey(existing, idField)
		for _, e := range group {
			key := model.Key(e, idField)
			stored, ok := byKey[key]
			if !ok {
				continue
			}
			if e.GetRowVersion() != stored.GetRowVersion() {
				found.Add(e, errs.ForRowVersionMismatch(key, e.GetRowVersion(), stored.GetRowVersion()))
			}
		}
	}
	return found
}
