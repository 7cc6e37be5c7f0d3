package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"healthreg/internal/bulk/model"
	"healthreg/internal/platform/redis"
)

// Row matches both *sql.Row and *sql.Rows for mapping scan functions.
type Row interface {
	Scan(dest ...any) error
}

// Mapping binds an entity kind to its table. Columns are listed in the
// order the Scan function consumes them.
type Mapping[T model.Entity] struct {
	Table   string
	Columns []string
	Scan    func(Row) (T, error)
}

// Publisher is the write side of the store: persistence is deferred to
// consumers reading the published batches.
type Publisher interface {
	Push(ctx context.Context, topic, key string, payload any) error
}

// Store reads entities for one kind and publishes accepted batches for
// asynchronous persistence. Reads go through a redis hash per table when a
// cache client is configured.
type Store[T model.Entity] struct {
	db      *sql.DB
	cache   *redis.Client
	pub     Publisher
	ns      Namespacer
	mapping Mapping[T]
	ttl     time.Duration
	logger  *slog.Logger
}

func New[T model.Entity](db *sql.DB, cache *redis.Client, pub Publisher, ns Namespacer, mapping Mapping[T], ttl time.Duration, logger *slog.Logger) *Store[T] {
	return &Store[T]{
		db:      db,
		cache:   cache,
		pub:     pub,
		ns:      ns,
		mapping: mapping,
		ttl:     ttl,
		logger:  logger,
	}
}

func (s *Store[T]) table(tenantID string) (string, error) {
	schema, err := s.ns.Resolve(tenantID)
	if err != nil {
		return "", err
	}
	return schema + "." + s.mapping.Table, nil
}

func idColumn(idField string) (string, error) {
	switch idField {
	case model.FieldID:
		return "id", nil
	case model.FieldClientReferenceID:
		return "client_reference_id", nil
	default:
		return "", fmt.Errorf("unknown identifier field %q", idField)
	}
}

// FindByID resolves entities by server id or client reference id, cache
// first, then the table for whatever the cache missed. Soft-deleted rows are
// returned only when includeDeleted is set, so validators can distinguish
// "deleted" from "never existed".
func (s *Store[T]) FindByID(ctx context.Context, tenantID string, ids []string, idField string, includeDeleted bool) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	column, err := idColumn(idField)
	if err != nil {
		return nil, err
	}

	found, missed := s.findInCache(ctx, tenantID, ids, idField)
	if len(missed) > 0 {
		table, err := s.table(tenantID)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND %s = ANY($2)",
			strings.Join(s.mapping.Columns, ", "), table, column)
		rows, err := s.db.QueryContext(ctx, query, tenantID, pq.Array(missed))
		if err != nil {
			return nil, fmt.Errorf("find %s by %s: %w", s.mapping.Table, idField, err)
		}
		defer rows.Close()
		for rows.Next() {
			entity, err := s.mapping.Scan(rows)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", s.mapping.Table, err)
			}
			found = append(found, entity)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find %s by %s: %w", s.mapping.Table, idField, err)
		}
	}

	if includeDeleted {
		return found, nil
	}
	live := found[:0]
	for _, entity := range found {
		if !entity.GetIsDeleted() {
			live = append(live, entity)
		}
	}
	return live, nil
}

// Find runs a criteria search: tenant predicate first, kind clauses, deleted
// exclusion, strict lastChangedSince, newest-first pagination.
func (s *Store[T]) Find(ctx context.Context, criteria Searchable) ([]T, error) {
	base := criteria.SearchBase()
	b, err := buildSearch(criteria)
	if err != nil {
		return nil, err
	}
	table, err := s.table(base.TenantID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY last_modified_time DESC LIMIT $%d OFFSET $%d",
		strings.Join(s.mapping.Columns, ", "), table, b.where(), len(b.args)+1, len(b.args)+2)
	args := append(b.args, base.Limit, base.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.mapping.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		entity, err := s.mapping.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.mapping.Table, err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", s.mapping.Table, err)
	}
	return out, nil
}

// Count returns the total matching the same predicate Find uses, ignoring
// pagination.
func (s *Store[T]) Count(ctx context.Context, criteria Searchable) (int64, error) {
	base := criteria.SearchBase()
	b, err := buildSearch(criteria)
	if err != nil {
		return 0, err
	}
	table, err := s.table(base.TenantID)
	if err != nil {
		return 0, err
	}

	var total int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, b.where())
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.mapping.Table, err)
	}
	return total, nil
}

// QueryWhere runs a kind-specific predicate against the tenant's table.
// Per-kind stores use it for lookups the shared criteria cannot express,
// like mapping-combination checks. The condition string is always built by
// the kind store itself, never from request input.
func (s *Store[T]) QueryWhere(ctx context.Context, tenantID, condition string, args ...any) ([]T, error) {
	table, err := s.table(tenantID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND (%s)",
		strings.Join(s.mapping.Columns, ", "), table, condition)
	rows, err := s.db.QueryContext(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.mapping.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		entity, err := s.mapping.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.mapping.Table, err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.mapping.Table, err)
	}
	return out, nil
}

// Save publishes one message per tenant group so consumers see per-tenant
// ordering, then warms the cache with the enriched entities. A cache failure
// after a successful publish is logged, not surfaced: the rows are already
// on their way to the table.
func (s *Store[T]) Save(ctx context.Context, entities []T, topic string) error {
	for tenantID, group := range model.GroupByTenant(entities) {
		if err := s.pub.Push(ctx, topic, tenantID, group); err != nil {
			return fmt.Errorf("publish %d %s to %s: %w", len(group), s.mapping.Table, topic, err)
		}
		s.putInCache(ctx, tenantID, group)
	}
	return nil
}

func (s *Store[T]) cacheKey(tenantID string) (string, bool) {
	schema, err := s.ns.Resolve(tenantID)
	if err != nil {
		return "", false
	}
	return "healthreg:" + schema + ":" + s.mapping.Table, true
}

// findInCache reads the table's hash under both identifier fields, returning
// hits and the ids still to be read from the table. Any cache error degrades
// to a full miss.
func (s *Store[T]) findInCache(ctx context.Context, tenantID string, ids []string, idField string) ([]T, []string) {
	if s.cache == nil {
		return nil, ids
	}
	key, ok := s.cacheKey(tenantID)
	if !ok {
		return nil, ids
	}

	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = idField + ":" + id
	}
	values, err := s.cache.HMGet(ctx, key, fields...).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "entity cache read failed", "table", s.mapping.Table, "error", err)
		return nil, ids
	}

	var found []T
	var missed []string
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			missed = append(missed, ids[i])
			continue
		}
		var entity T
		if err := json.Unmarshal([]byte(raw), &entity); err != nil {
			missed = append(missed, ids[i])
			continue
		}
		found = append(found, entity)
	}
	return found, missed
}

func (s *Store[T]) putInCache(ctx context.Context, tenantID string, entities []T) {
	if s.cache == nil || len(entities) == 0 {
		return
	}
	key, ok := s.cacheKey(tenantID)
	if !ok {
		return
	}

	pairs := make([]any, 0, len(entities)*4)
	for _, entity := range entities {
		raw, err := json.Marshal(entity)
		if err != nil {
			continue
		}
		if id := entity.GetID(); id != "" {
			pairs = append(pairs, model.FieldID+":"+id, raw)
		}
		if ref := entity.GetClientReferenceID(); ref != "" {
			pairs = append(pairs, model.FieldClientReferenceID+":"+ref, raw)
		}
	}
	if len(pairs) == 0 {
		return
	}
	if err := s.cache.HSet(ctx, key, pairs...).Err(); err != nil {
		s.logger.WarnContext(ctx, "entity cache write failed", "table", s.mapping.Table, "error", err)
		return
	}
	if s.ttl > 0 {
		s.cache.Expire(ctx, key, s.ttl)
	}
}
