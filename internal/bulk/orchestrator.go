// Package bulk wires the pipeline stages for one entity kind: the validator
// chain, enrichment, and the publish step, plus the synchronous search path.
package bulk

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/errs"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
	"healthreg/internal/bulk/validate"
	"healthreg/internal/platform/metrics"
)

// Topics names the persistence topics for one kind, one per operation.
type Topics struct {
	Create string
	Update string
	Delete string
}

// TopicsFor derives the conventional topic names for a kind.
func TopicsFor(kind string) Topics {
	return Topics{
		Create: "save-" + kind + "-topic",
		Update: "update-" + kind + "-topic",
		Delete: "delete-" + kind + "-topic",
	}
}

// All returns the kind's topics for broker provisioning.
func (t Topics) All() []string {
	return []string{t.Create, t.Update, t.Delete}
}

// Storage is what the orchestrator needs from the persistence gateway.
// *store.Store satisfies it; tests substitute fakes.
type Storage[T model.Entity] interface {
	validate.Finder[T]
	Find(ctx context.Context, criteria store.Searchable) ([]T, error)
	Count(ctx context.Context, criteria store.Searchable) (int64, error)
	Save(ctx context.Context, entities []T, topic string) error
}

// Result reports a bulk mutation: every entity from the request, in request
// order, with whatever server state enrichment stamped onto the accepted
// ones, and the per-entity failures for the rest. A batch where every entity
// failed is still a Result, not an operation error.
type Result[T model.Entity] struct {
	Entities []T
	Errors   validate.ErrorMap[T]
}

// SearchResult pairs a page of matches with the total across all pages.
type SearchResult[T model.Entity] struct {
	Entities   []T
	TotalCount int64
}

// Config assembles an orchestrator for one kind.
type Config[T model.Entity] struct {
	Kind        string
	CreateChain *validate.Chain[T]
	UpdateChain *validate.Chain[T]
	DeleteChain *validate.Chain[T]
	Enricher    *enrich.Service[T]
	Storage     Storage[T]
	// PostEnrich runs after create enrichment, before publish. Kinds with
	// resolvable parent references hook their write-through here.
	PostEnrich func(ctx context.Context, entities []T) error
	Topics     Topics
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Orchestrator runs the bulk pipeline for one entity kind.
type Orchestrator[T model.Entity] struct {
	cfg    Config[T]
	tracer trace.Tracer
}

func New[T model.Entity](cfg Config[T]) *Orchestrator[T] {
	return &Orchestrator[T]{cfg: cfg, tracer: otel.Tracer("healthreg/bulk")}
}

// Create validates, enriches, and publishes the clean subset of the batch.
func (o *Orchestrator[T]) Create(ctx context.Context, req *model.BulkRequest[T]) *Result[T] {
	ctx, span := o.span(ctx, "create", len(req.Entities))
	defer span.End()

	acc := o.runChain(ctx, o.cfg.CreateChain, req, "create")
	valid := validate.CleanSubset(req.Entities, acc)
	if len(valid) > 0 {
		start := time.Now()
		if err := o.cfg.Enricher.Create(ctx, valid, req); err != nil {
			o.cfg.Logger.ErrorContext(ctx, "create enrichment failed", "kind", o.cfg.Kind, "error", err)
			o.failAll(acc, valid, errs.ForNetworkError(o.cfg.Kind, err))
			valid = nil
		}
		if len(valid) > 0 && o.cfg.PostEnrich != nil {
			if err := o.cfg.PostEnrich(ctx, valid); err != nil {
				o.cfg.Logger.ErrorContext(ctx, "reference resolution failed", "kind", o.cfg.Kind, "error", err)
				o.failAll(acc, valid, errs.ForNetworkError(o.cfg.Kind, err))
				valid = nil
			}
		}
		o.observeStage("enrich", start)
	}

	o.publish(ctx, acc, valid, o.cfg.Topics.Create, "create")
	return &Result[T]{Entities: req.Entities, Errors: acc}
}

// Update validates against stored state, re-enriches from it, and publishes.
func (o *Orchestrator[T]) Update(ctx context.Context, req *model.BulkRequest[T]) *Result[T] {
	return o.mutate(ctx, req, o.cfg.UpdateChain, o.cfg.Topics.Update, "update", false)
}

// Delete is the soft-delete variant of Update.
func (o *Orchestrator[T]) Delete(ctx context.Context, req *model.BulkRequest[T]) *Result[T] {
	return o.mutate(ctx, req, o.cfg.DeleteChain, o.cfg.Topics.Delete, "delete", true)
}

func (o *Orchestrator[T]) mutate(ctx context.Context, req *model.BulkRequest[T], chain *validate.Chain[T], topic, op string, deleted bool) *Result[T] {
	ctx, span := o.span(ctx, op, len(req.Entities))
	defer span.End()

	acc := o.runChain(ctx, chain, req, op)
	valid := validate.CleanSubset(req.Entities, acc)
	if len(valid) > 0 {
		start := time.Now()
		idField := model.IDFieldFor(valid)
		for tenantID, group := range model.GroupByTenant(valid) {
			existing, err := o.cfg.Storage.FindByID(ctx, tenantID, model.IDList(group, idField), idField, false)
			if err != nil {
				o.cfg.Logger.ErrorContext(ctx, "stored state lookup failed",
					"kind", o.cfg.Kind, "tenantId", tenantID, "error", err)
				o.failAll(acc, group, errs.ForNetworkError(o.cfg.Kind, err))
				continue
			}
			byKey := model.ByKey(existing, idField)
			if deleted {
				o.cfg.Enricher.Delete(ctx, group, byKey, idField, req)
			} else {
				o.cfg.Enricher.Update(ctx, group, byKey, idField, req)
			}
		}
		o.observeStage("enrich", start)
		valid = validate.CleanSubset(valid, acc)
	}

	o.publish(ctx, acc, valid, topic, op)
	return &Result[T]{Entities: req.Entities, Errors: acc}
}

// Search serves reads synchronously. Pure identifier lookups short-circuit
// to a point read with the remaining filters applied in memory; everything
// else goes through the criteria query.
func (o *Orchestrator[T]) Search(ctx context.Context, criteria store.Searchable) (*SearchResult[T], error) {
	ctx, span := o.span(ctx, "search", 0)
	defer span.End()
	start := time.Now()
	defer o.observeStage("search", start)

	base := criteria.SearchBase()
	if base.ByIDOnly(len(criteria.Clauses()) > 0) {
		return o.searchByID(ctx, base)
	}

	entities, err := o.cfg.Storage.Find(ctx, criteria)
	if err != nil {
		return nil, err
	}
	total, err := o.cfg.Storage.Count(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return &SearchResult[T]{Entities: entities, TotalCount: total}, nil
}

func (o *Orchestrator[T]) searchByID(ctx context.Context, base model.SearchCriteria) (*SearchResult[T], error) {
	field, ids := model.FieldID, base.IDs
	if len(ids) == 0 {
		field, ids = model.FieldClientReferenceID, base.ClientReferenceIDs
	}
	found, err := o.cfg.Storage.FindByID(ctx, base.TenantID, ids, field, base.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	// When both identifier lists are supplied, the lookup runs on server ids
	// and the client reference ids narrow the result, matching how the
	// criteria query ANDs the two predicates.
	var refs map[string]struct{}
	if field == model.FieldID && len(base.ClientReferenceIDs) > 0 {
		refs = make(map[string]struct{}, len(base.ClientReferenceIDs))
		for _, ref := range base.ClientReferenceIDs {
			refs[ref] = struct{}{}
		}
	}

	matched := found[:0]
	for _, entity := range found {
		if refs != nil {
			if _, ok := refs[entity.GetClientReferenceID()]; !ok {
				continue
			}
		}
		if base.LastChangedSince > 0 {
			details := entity.GetAuditDetails()
			if details == nil || details.LastModifiedTime <= base.LastChangedSince {
				continue
			}
		}
		matched = append(matched, entity)
	}

	total := int64(len(matched))
	if base.Offset > 0 {
		if base.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[base.Offset:]
		}
	}
	if base.Limit > 0 && len(matched) > base.Limit {
		matched = matched[:base.Limit]
	}
	return &SearchResult[T]{Entities: matched, TotalCount: total}, nil
}

func (o *Orchestrator[T]) runChain(ctx context.Context, chain *validate.Chain[T], req *model.BulkRequest[T], op string) validate.ErrorMap[T] {
	o.cfg.Metrics.EntitiesReceived.WithLabelValues(o.cfg.Kind, op).Add(float64(len(req.Entities)))
	start := time.Now()
	acc := chain.Run(ctx, req)
	o.observeStage("validate", start)
	for _, failures := range acc {
		for _, failure := range failures {
			o.cfg.Metrics.ValidationErrors.WithLabelValues(o.cfg.Kind, string(failure.Code)).Inc()
		}
	}
	return acc
}

func (o *Orchestrator[T]) publish(ctx context.Context, acc validate.ErrorMap[T], valid []T, topic, op string) {
	if len(valid) == 0 {
		return
	}
	start := time.Now()
	if err := o.cfg.Storage.Save(ctx, valid, topic); err != nil {
		o.cfg.Logger.ErrorContext(ctx, "publish failed", "kind", o.cfg.Kind, "topic", topic, "error", err)
		o.failAll(acc, valid, errs.ForPublishFailure(err))
		return
	}
	o.observeStage("publish", start)
	o.cfg.Metrics.EntitiesAccepted.WithLabelValues(o.cfg.Kind, op).Add(float64(len(valid)))
	o.cfg.Metrics.Published.WithLabelValues(topic).Inc()
	o.cfg.Logger.InfoContext(ctx, "batch published",
		"kind", o.cfg.Kind,
		"operation", op,
		"topic", topic,
		"accepted", len(valid),
	)
}

func (o *Orchestrator[T]) failAll(acc validate.ErrorMap[T], entities []T, e errs.Error) {
	for _, entity := range entities {
		acc.Add(entity, e)
	}
}

func (o *Orchestrator[T]) span(ctx context.Context, op string, count int) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, o.cfg.Kind+"."+op, trace.WithAttributes(
		attribute.String("entity.kind", o.cfg.Kind),
		attribute.Int("batch.size", count),
	))
}

func (o *Orchestrator[T]) observeStage(stage string, start time.Time) {
	o.cfg.Metrics.StageDuration.WithLabelValues(o.cfg.Kind, stage).Observe(time.Since(start).Seconds())
}
