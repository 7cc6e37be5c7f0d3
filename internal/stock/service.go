package stock

import (
	"log/slog"
	"time"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/platform/metrics"
)

// Deps assembles the stock pipeline's collaborators. Product variants and
// facilities are validated against their owning registries.
type Deps struct {
	Storage         bulk.Storage[*Stock]
	ProductVariants validate.RefLookup
	Facilities      validate.RefLookup
	IDs             enrich.IDSource
	LookupTimeout   time.Duration
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// Service runs the bulk pipeline for stock transactions.
type Service struct {
	*bulk.Orchestrator[*Stock]
}

func NewService(d Deps) *Service {
	logger := d.Logger.With("kind", Kind)

	productVariants := validate.NewRelational("product-variant",
		(*Stock).productVariantRefs, d.ProductVariants, d.LookupTimeout, logger)
	facilities := validate.NewRelational("facility",
		(*Stock).facilityRefs, d.Facilities, d.LookupTimeout, logger)

	createChain := validate.NewChain(logger,
		validate.NoServerID[*Stock]{},
		validate.BatchUniqueness[*Stock]{},
		validate.DeletedGuard[*Stock]{},
		productVariants,
		facilities,
	)
	updateChain := validate.NewChain(logger,
		validate.BatchUniqueness[*Stock]{},
		validate.DeletedGuard[*Stock]{},
		validate.NewExistence(d.Storage, logger),
		validate.NewRowVersion(d.Storage, logger),
		productVariants,
		facilities,
	)
	deleteChain := validate.NewChain(logger,
		validate.BatchUniqueness[*Stock]{},
		validate.NewExistence(d.Storage, logger),
		validate.NewRowVersion(d.Storage, logger),
	)

	return &Service{bulk.New(bulk.Config[*Stock]{
		Kind:        Kind,
		CreateChain: createChain,
		UpdateChain: updateChain,
		DeleteChain: deleteChain,
		Enricher:    enrich.New[*Stock](d.IDs, logger),
		Storage:     d.Storage,
		Topics:      bulk.TopicsFor(Kind),
		Metrics:     d.Metrics,
		Logger:      logger,
	})}
}
