package member

import (
	"context"
	"log/slog"

	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/validate"
)

// HeadFinder looks up stored head-of-household rows for a set of household
// identifiers.
type HeadFinder interface {
	FindByCombination(ctx context.Context, tenantID string, keys []string) ([]*HouseholdMember, error)
}

// HeadUniqueness enforces at most one head per household, within the batch
// and against the store. Households may be referenced by server id or client
// reference id, so a head claims both identifiers of its household.
type HeadUniqueness struct {
	finder HeadFinder
	logger *slog.Logger
}

func NewHeadUniqueness(finder HeadFinder, logger *slog.Logger) *HeadUniqueness {
	return &HeadUniqueness{finder: finder, logger: logger}
}

func (*HeadUniqueness) Name() string { return "head_of_household_uniqueness" }

func (v *HeadUniqueness) Validate(ctx context.Context, req *model.BulkRequest[*HouseholdMember], acc validate.ErrorMap[*HouseholdMember]) validate.ErrorMap[*HouseholdMember] {
	found := make(validate.ErrorMap[*HouseholdMember])

	var heads []*HouseholdMember
	for _, m := range validate.CleanSubset(req.Entities, acc) {
		if m.IsHeadOfHousehold && len(m.householdRefs()) > 0 {
			heads = append(heads, m)
		}
	}
	if len(heads) == 0 {
		return found
	}

	// Within the batch: the first head claims its household, later ones
	// conflict.
	claimed := make(map[string]*HouseholdMember)
	for _, m := range heads {
		owner := (*HouseholdMember)(nil)
		for _, ref := range m.householdRefs() {
			if prior, ok := claimed[ref]; ok {
				owner = prior
				break
			}
		}
		if owner != nil {
			found.Add(m, errs.ForDuplicateMapping(m.headKey()))
			continue
		}
		for _, ref := range m.householdRefs() {
			claimed[ref] = m
		}
	}

	// Against the store, one batched lookup per tenant.
	for tenantID, group := range model.GroupByTenant(heads) {
		var refs []string
		for _, m := range group {
			if !found.HasErrors(m) {
				refs = append(refs, m.householdRefs()...)
			}
		}
		if len(refs) == 0 {
			continue
		}
		stored, err := v.finder.FindByCombination(ctx, tenantID, refs)
		if err != nil {
			v.logger.ErrorContext(ctx, "head-of-household lookup failed", "tenant", tenantID, "error", err)
			for _, m := range group {
				found.Add(m, errs.ForNetworkError("store", err))
			}
			continue
		}

		storedByRef := make(map[string]*HouseholdMember)
		for _, s := range stored {
			for _, ref := range s.householdRefs() {
				storedByRef[ref] = s
			}
		}
		for _, m := range group {
			if found.HasErrors(m) {
				continue
			}
			for _, ref := range m.householdRefs() {
				owner, ok := storedByRef[ref]
				if !ok || sameMember(m, owner) {
					continue
				}
				found.Add(m, errs.ForDuplicateMapping(m.headKey()))
				break
			}
		}
	}
	return found
}

// sameMember reports whether the submitted row is the stored one itself, so
// re-submitting an existing head is an idempotent no-op.
func sameMember(submitted, stored *HouseholdMember) bool {
	if submitted.ID != "" && submitted.ID == stored.ID {
		return true
	}
	return submitted.ClientReferenceID != "" && submitted.ClientReferenceID == stored.ClientReferenceID
}
