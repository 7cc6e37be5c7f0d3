package facilitymapping

import (
	"log/slog"
	"time"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/platform/metrics"
)

// Deps assembles the mapping pipeline's collaborators.
type Deps struct {
	Storage       *Store
	Projects      validate.RefLookup
	Facilities    validate.RefLookup
	IDs           enrich.IDSource
	LookupTimeout time.Duration
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Service runs the bulk pipeline for project-facility mappings.
type Service struct {
	*bulk.Orchestrator[*FacilityMapping]
}

func NewService(d Deps) *Service {
	logger := d.Logger.With("kind", Kind)

	projects := validate.NewRelational("project",
		(*FacilityMapping).projectRefs, d.Projects, d.LookupTimeout, logger)
	facilities := validate.NewRelational("facility",
		(*FacilityMapping).facilityRefs, d.Facilities, d.LookupTimeout, logger)
	combination := validate.NewUniqueCombination(
		(*FacilityMapping).combinationKey, d.Storage, logger)

	createChain := validate.NewChain(logger,
		validate.NoServerID[*FacilityMapping]{},
		validate.BatchUniqueness[*FacilityMapping]{},
		validate.DeletedGuard[*FacilityMapping]{},
		projects,
		facilities,
		combination,
	)
	updateChain := validate.NewChain(logger,
		validate.BatchUniqueness[*FacilityMapping]{},
		validate.DeletedGuard[*FacilityMapping]{},
		validate.NewExistence[*FacilityMapping](d.Storage, logger),
		validate.NewRowVersion[*FacilityMapping](d.Storage, logger),
		projects,
		facilities,
		combination,
	)
	deleteChain := validate.NewChain(logger,
		validate.BatchUniqueness[*FacilityMapping]{},
		validate.NewExistence[*FacilityMapping](d.Storage, logger),
		validate.NewRowVersion[*FacilityMapping](d.Storage, logger),
	)

	return &Service{bulk.New(bulk.Config[*FacilityMapping]{
		Kind:        Kind,
		CreateChain: createChain,
		UpdateChain: updateChain,
		DeleteChain: deleteChain,
		Enricher:    enrich.New[*FacilityMapping](d.IDs, logger),
		Storage:     d.Storage,
		Topics:      bulk.TopicsFor(Kind),
		Metrics:     d.Metrics,
		Logger:      logger,
	})}
}
