// Package validate implements the validator contract, the ordered chain
// executor, and the standard validator library shared by every entity kind.
package validate

import (
	"context"
	"log/slog"

	"healthreg/internal/bulk/model"
)

// Validator screens a batch and reports per-entity failures. Implementations
// must not mutate the request and must self-filter: they operate only on the
// subset of the batch not already carrying errors in acc.
type Validator[T model.Entity] interface {
	// Name identifies the validator in logs.
	Name() string
	// Validate returns the failures this check found. acc is read-only
	// context: the errors accumulated by earlier validators in the chain.
	Validate(ctx context.Context, req *model.BulkRequest[T], acc ErrorMap[T]) ErrorMap[T]
}

// Chain runs validators strictly in construction order and merges their
// results. It never short-circuits: a batch with some invalid entities still
// yields its clean subset for enrichment.
type Chain[T model.Entity] struct {
	validators []Validator[T]
	logger     *slog.Logger
}

// NewChain builds a chain. Order is a configuration concern decided at
// startup; later validators may rely on earlier ones having already filtered
// their working set.
func NewChain[T model.Entity](logger *slog.Logger, validators ...Validator[T]) *Chain[T] {
	return &Chain[T]{validators: validators, logger: logger}
}

// Run executes the chain and returns the accumulated error map.
func (c *Chain[T]) Run(ctx context.Context, req *model.BulkRequest[T]) ErrorMap[T] {
	acc := make(ErrorMap[T])
	for _, v := range c.validators {
		found := v.Validate(ctx, req, acc)
		if len(found) > 0 {
			c.logger.DebugContext(ctx, "validator reported errors",
				"validator", v.Name(),
				"entities", len(found),
			)
		}
		acc.Merge(found)
	}
	return acc
}
