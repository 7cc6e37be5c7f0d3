package validate

import (
	"context"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
)

// NoServerID rejects create-path entities that pre-supply a server-assigned
// id; creation must leave id assignment to enrichment.
type NoServerID[T model.Entity] struct{}

func (NoServerID[T]) Name() string { return "no_server_id" }

func (NoServerID[T]) Validate(_ context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	for _, e := range CleanSubset(req.Entities, acc) {
		if e.GetID() != "" {
			found.Add(e, errs.ForNullID())
		}
	}
	return found
}

// BatchUniqueness rejects entities whose id or client reference id collides
// with an earlier entity in the same batch. The first occurrence of a key
// stays clean; later occurrences are flagged.
type BatchUniqueness[T model.Entity] struct{}

func (BatchUniqueness[T]) Name() string { return "batch_uniqueness" }

func (BatchUniqueness[T]) Validate(_ context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	seenID := make(map[string]struct{})
	seenRef := make(map[string]struct{})
	for _, e := range CleanSubset(req.Entities, acc) {
		if id := e.GetID(); id != "" {
			if _, dup := seenID[id]; dup {
				found.Add(e, errs.ForDuplicateInBatch(id))
				continue
			}
			seenID[id] = struct{}{}
		}
		if ref := e.GetClientReferenceID(); ref != "" {
			if _, dup := seenRef[ref]; dup {
				found.Add(e, errs.ForDuplicateInBatch(ref))
				continue
			}
			seenRef[ref] = struct{}{}
		}
	}
	return found
}

// DeletedGuard rejects any payload entity submitted with isDeleted set.
// Deletion is a distinct operation, never a field value.
type DeletedGuard[T model.Entity] struct{}

func (DeletedGuard[T]) Name() string { return "deleted_guard" }

func (DeletedGuard[T]) Validate(_ context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	for _, e := range CleanSubset(req.Entities, acc) {
		if e.GetIsDeleted() {
			found.Add(e, errs.ForAlreadyDeleted(model.Key(e, model.IDFieldFor([]T{e}))))
		}
	}
	return found
}
