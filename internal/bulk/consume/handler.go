package consume

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"healthreg/internal/bulk/model"
	"healthreg/internal/platform/kafka/consumer"
)

// Op is the mutation a topic carries.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Handler decodes one kind's published batches and applies them. Deletes
// ride the update path: the publisher already set is_deleted and bumped the
// row version, so the conditional update covers both.
type Handler[T model.Entity] struct {
	applier *Applier[T]
	op      Op
	logger  *slog.Logger
}

func NewHandler[T model.Entity](applier *Applier[T], op Op, logger *slog.Logger) *Handler[T] {
	return &Handler[T]{applier: applier, op: op, logger: logger}
}

// Handle decodes the batch and applies it. A payload that fails to decode is
// logged and committed: decoding is deterministic, so redelivery can never
// succeed and an uncommitted offset would wedge the whole group on one
// poison message. Storage errors still return, leaving the offset
// uncommitted for redelivery.
func (h *Handler[T]) Handle(ctx context.Context, msg *consumer.Message) error {
	var batch []T
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		h.logger.ErrorContext(ctx, "dropping undecodable message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	if len(batch) == 0 {
		return nil
	}
	switch h.op {
	case OpCreate:
		return h.applier.Create(ctx, batch)
	case OpUpdate, OpDelete:
		return h.applier.Update(ctx, batch)
	default:
		return fmt.Errorf("unknown operation %q for topic %s", h.op, msg.Topic)
	}
}
