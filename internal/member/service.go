package member

import (
	"context"
	"log/slog"
	"time"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/household"
	"healthreg/internal/platform/metrics"
)

// Deps assembles the member pipeline's collaborators: its own store, the
// locally-owned household read path, and the remote individual registry.
type Deps struct {
	Storage       *Store
	Households    validate.Finder[*household.Household]
	Individuals   validate.RefLookup
	IDs           enrich.IDSource
	LookupTimeout time.Duration
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Service runs the bulk pipeline for household members.
type Service struct {
	*bulk.Orchestrator[*HouseholdMember]
}

func NewService(d Deps) *Service {
	logger := d.Logger.With("kind", Kind)

	households := validate.NewRelational(household.Kind,
		(*HouseholdMember).householdRefs,
		validate.NewFinderLookup(d.Households),
		d.LookupTimeout, logger)
	individuals := validate.NewRelational("individual",
		(*HouseholdMember).individualRefs,
		d.Individuals,
		d.LookupTimeout, logger)
	heads := NewHeadUniqueness(d.Storage, logger)

	createChain := validate.NewChain(logger,
		validate.NoServerID[*HouseholdMember]{},
		validate.BatchUniqueness[*HouseholdMember]{},
		validate.DeletedGuard[*HouseholdMember]{},
		households,
		individuals,
		heads,
	)
	updateChain := validate.NewChain(logger,
		validate.BatchUniqueness[*HouseholdMember]{},
		validate.DeletedGuard[*HouseholdMember]{},
		validate.NewExistence[*HouseholdMember](d.Storage, logger),
		validate.NewRowVersion[*HouseholdMember](d.Storage, logger),
		households,
		individuals,
		heads,
	)
	deleteChain := validate.NewChain(logger,
		validate.BatchUniqueness[*HouseholdMember]{},
		validate.NewExistence[*HouseholdMember](d.Storage, logger),
		validate.NewRowVersion[*HouseholdMember](d.Storage, logger),
	)

	householdRef := enrich.ParentRef[*HouseholdMember]{
		GetID:  func(m *HouseholdMember) string { return m.HouseholdID },
		SetID:  func(m *HouseholdMember, id string) { m.HouseholdID = id },
		GetRef: func(m *HouseholdMember) string { return m.HouseholdClientReferenceID },
		SetRef: func(m *HouseholdMember, ref string) { m.HouseholdClientReferenceID = ref },
	}

	return &Service{bulk.New(bulk.Config[*HouseholdMember]{
		Kind:        Kind,
		CreateChain: createChain,
		UpdateChain: updateChain,
		DeleteChain: deleteChain,
		Enricher:    enrich.New[*HouseholdMember](d.IDs, logger),
		Storage:     d.Storage,
		PostEnrich: func(ctx context.Context, members []*HouseholdMember) error {
			return enrich.ResolveParent(ctx, members, householdRef, d.Households)
		},
		Topics:  bulk.TopicsFor(Kind),
		Metrics: d.Metrics,
		Logger:  logger,
	})}
}
