package validate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
)

// RefLookup resolves referenced ids against the owning service. One batched
// call per tenant; an error means the call as a whole failed.
type RefLookup interface {
	ExistingIDs(ctx context.Context, tenantID string, ids []string) ([]string, error)
}

// Relational is the generic template for foreign-key checks across service
// boundaries. It groups the clean subset by tenant, issues one batched
// existence query per tenant against the owning service, and flags entities
// whose references cannot be resolved. A network failure marks every entity
// of the affected tenant group with NETWORK_ERROR: the underlying call is
// all-or-nothing per tenant, so there is no partial recovery.
type Relational[T model.Entity] struct {
	kind    string
	refs    func(T) []string
	lookup  RefLookup
	timeout time.Duration
	logger  *slog.Logger
}

// NewRelational builds a relational validator. kind names the referenced
// entity kind for error messages; refs extracts the referenced ids from one
// entity (empty result skips the entity); timeout bounds each per-tenant
// remote call.
func NewRelational[T model.Entity](kind string, refs func(T) []string, lookup RefLookup, timeout time.Duration, logger *slog.Logger) *Relational[T] {
	return &Relational[T]{kind: kind, refs: refs, lookup: lookup, timeout: timeout, logger: logger}
}

func (v *Relational[T]) Name() string { return "relational_" + v.kind }

func (v *Relational[T]) Validate(ctx context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T] {
	found := make(ErrorMap[T])
	clean := CleanSubset(req.Entities, acc)
	if len(clean) == 0 {
		return found
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for tenantID, group := range model.GroupByTenant(clean) {
		// Collect the distinct referenced ids for this tenant group.
		var ids []string
		seen := make(map[string]struct{})
		withRefs := make(map[T][]string)
		for _, e := range group {
			refs := v.refs(e)
			if len(refs) == 0 {
				continue
			}
			withRefs[e] = refs
			for _, id := range refs {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		if len(ids) == 0 {
			continue
		}

		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, v.timeout)
			defer cancel()

			existing, err := v.lookup.ExistingIDs(lctx, tenantID, ids)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				v.logger.ErrorContext(ctx, "relational lookup failed",
					"related_kind", v.kind,
					"tenant", tenantID,
					"error", err,
				)
				for e := range withRefs {
					found.Add(e, errs.ForNetworkError(v.kind, err))
				}
				return nil
			}

			known := make(map[string]struct{}, len(existing))
			for _, id := range existing {
				known[id] = struct{}{}
			}
			for e, refs := range withRefs {
				var missing []string
				for _, id := range refs {
					if _, ok := known[id]; !ok {
						missing = append(missing, id)
					}
				}
				if len(missing) > 0 {
					found.Add(e, errs.ForNonExistentRelated(v.kind, missing))
				}
			}
			return nil
		})
	}

	// Lookup failures are reported per entity, never escalated, so the group
	// error is always nil.
	_ = g.Wait()
	return found
}
