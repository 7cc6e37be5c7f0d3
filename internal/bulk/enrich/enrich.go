// Package enrich stamps server-assigned state onto validated entities:
// identifiers, audit metadata, version counters, and resolved foreign keys.
// Everything here is an in-memory transformation; nothing becomes visible to
// callers until the persistence step applies it.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/validate"
	"healthreg/pkg/requestcontext"
)

// Service enriches the error-free subset of a batch after validation.
type Service[T model.Entity] struct {
	ids    IDSource
	logger *slog.Logger
}

func New[T model.Entity](ids IDSource, logger *slog.Logger) *Service[T] {
	return &Service[T]{ids: ids, logger: logger}
}

// actor resolves the audit actor: the request envelope's user uuid when
// present, else the authenticated user from the context.
func actor[T model.Entity](ctx context.Context, req *model.BulkRequest[T]) string {
	if a := req.Actor(); a != "" {
		return a
	}
	return requestcontext.ActorID(ctx)
}

// Create assigns ids (batched per tenant), stamps create audit details, and
// initializes rowVersion=1, isDeleted=false.
func (s *Service[T]) Create(ctx context.Context, entities []T, req *model.BulkRequest[T]) error {
	if len(entities) == 0 {
		return nil
	}
	now := requestcontext.Now(ctx).UnixMilli()
	by := actor(ctx, req)

	for tenantID, group := range model.GroupByTenant(entities) {
		ids, err := s.ids.NextIDs(ctx, tenantID, len(group))
		if err != nil {
			return fmt.Errorf("assign ids for tenant %s: %w", tenantID, err)
		}
		for i, e := range group {
			e.SetID(ids[i])
			e.SetAuditDetails(&model.AuditDetails{
				CreatedBy:        by,
				LastModifiedBy:   by,
				CreatedTime:      now,
				LastModifiedTime: now,
			})
			e.SetRowVersion(1)
			e.SetIsDeleted(false)
		}
	}
	s.logger.DebugContext(ctx, "enriched entities for create", "count", len(entities))
	return nil
}

// Update carries forward the stored identity and create-audit fields,
// refreshes the lastModified pair, and bumps the row version by exactly one
// from the stored value, never from client input. existing is keyed by
// idField, as returned by the existence lookup.
func (s *Service[T]) Update(ctx context.Context, entities []T, existing map[string]T, idField string, req *model.BulkRequest[T]) {
	s.mutate(ctx, entities, existing, idField, req, false)
}

// Delete is Update with the soft-delete flag set; the flip to isDeleted=true
// is the only mutation the delete path makes.
func (s *Service[T]) Delete(ctx context.Context, entities []T, existing map[string]T, idField string, req *model.BulkRequest[T]) {
	s.mutate(ctx, entities, existing, idField, req, true)
}

func (s *Service[T]) mutate(ctx context.Context, entities []T, existing map[string]T, idField string, req *model.BulkRequest[T], deleted bool) {
	now := requestcontext.Now(ctx).UnixMilli()
	by := actor(ctx, req)

	for _, e := range entities {
		stored, ok := existing[model.Key(e, idField)]
		if !ok {
			// The existence validator already vouched for every clean
			// entity; a miss here means the chains were miswired.
			s.logger.ErrorContext(ctx, "no stored counterpart for validated entity", "key", model.Key(e, idField))
			continue
		}

		// Write through both identifiers so a client that addressed the
		// entity by clientReferenceId gets the canonical id back, and vice
		// versa.
		e.SetID(stored.GetID())
		e.SetClientReferenceID(stored.GetClientReferenceID())

		details := &model.AuditDetails{
			LastModifiedBy:   by,
			LastModifiedTime: now,
		}
		if prior := stored.GetAuditDetails(); prior != nil {
			details.CreatedBy = prior.CreatedBy
			details.CreatedTime = prior.CreatedTime
		}
		e.SetAuditDetails(details)
		e.SetRowVersion(stored.GetRowVersion() + 1)
		e.SetIsDeleted(deleted)
	}
}

// ParentRef describes a resolvable reference a child entity holds to a
// parent kind: accessors for the parent's id and client reference id on the
// child.
type ParentRef[T any] struct {
	GetID  func(T) string
	SetID  func(T, string)
	GetRef func(T) string
	SetRef func(T, string)
}

// ResolveParent writes through resolved foreign keys: children that supplied
// only the parent's client reference id get the parent's canonical id filled
// in, and vice versa. The lookup reuses the store read the relational
// validation already warmed, not a second remote round-trip.
func ResolveParent[T model.Entity, P model.Entity](ctx context.Context, children []T, ref ParentRef[T], parents validate.Finder[P]) error {
	if len(children) == 0 {
		return nil
	}

	field := model.FieldClientReferenceID
	for _, c := range children {
		if ref.GetID(c) != "" {
			field = model.FieldID
			break
		}
	}
	key := func(c T) string {
		if field == model.FieldID {
			return ref.GetID(c)
		}
		return ref.GetRef(c)
	}

	byTenant := make(map[string][]T)
	for _, c := range children {
		if key(c) != "" {
			byTenant[c.GetTenantID()] = append(byTenant[c.GetTenantID()], c)
		}
	}

	for tenantID, group := range byTenant {
		ids := make([]string, 0, len(group))
		for _, c := range group {
			ids = append(ids, key(c))
		}
		found, err := parents.FindByID(ctx, tenantID, ids, field, false)
		if err != nil {
			return fmt.Errorf("resolve parent refs for tenant %s: %w", tenantID, err)
		}
		byKey := model.ByKey(found, field)
		for _, c := range group {
			parent, ok := byKey[key(c)]
			if !ok {
				continue
			}
			ref.SetID(c, parent.GetID())
			ref.SetRef(c, parent.GetClientReferenceID())
		}
	}
	return nil
}
