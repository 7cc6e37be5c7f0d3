package household

import (
	"log/slog"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/platform/metrics"
)

// Service runs the bulk pipeline for households. Households reference no
// other kind, so the chains are the standard local ones.
type Service struct {
	*bulk.Orchestrator[*Household]
}

func NewService(storage bulk.Storage[*Household], ids enrich.IDSource, m *metrics.Metrics, logger *slog.Logger) *Service {
	logger = logger.With("kind", Kind)

	createChain := validate.NewChain(logger,
		validate.NoServerID[*Household]{},
		validate.BatchUniqueness[*Household]{},
		validate.DeletedGuard[*Household]{},
	)
	updateChain := validate.NewChain(logger,
		validate.BatchUniqueness[*Household]{},
		validate.DeletedGuard[*Household]{},
		validate.NewExistence(storage, logger),
		validate.NewRowVersion(storage, logger),
	)
	deleteChain := validate.NewChain(logger,
		validate.BatchUniqueness[*Household]{},
		validate.NewExistence(storage, logger),
		validate.NewRowVersion(storage, logger),
	)

	return &Service{bulk.New(bulk.Config[*Household]{
		Kind:        Kind,
		CreateChain: createChain,
		UpdateChain: updateChain,
		DeleteChain: deleteChain,
		Enricher:    enrich.New[*Household](ids, logger),
		Storage:     storage,
		Topics:      bulk.TopicsFor(Kind),
		Metrics:     m,
		Logger:      logger,
	})}
}
