package consume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
	"healthreg/internal/platform/metrics"
)

// TableSpec binds an entity kind to its table for the write path. Columns
// and Values are aligned: Values(e) yields one argument per column. The
// column list must include id and row_version.
type TableSpec[T model.Entity] struct {
	Table   string
	Columns []string
	Values  func(T) []any
}

// Applier materialises published batches into the tenant's table. Creates
// are idempotent inserts; updates and deletes apply only against the row
// version the writer saw, so a lost-update loser is dropped rather than
// overwriting a newer row.
type Applier[T model.Entity] struct {
	pool    *pgxpool.Pool
	ns      store.Namespacer
	spec    TableSpec[T]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewApplier[T model.Entity](pool *pgxpool.Pool, ns store.Namespacer, spec TableSpec[T], m *metrics.Metrics, logger *slog.Logger) *Applier[T] {
	return &Applier[T]{pool: pool, ns: ns, spec: spec, metrics: m, logger: logger}
}

func (a *Applier[T]) table(tenantID string) (string, error) {
	schema, err := a.ns.Resolve(tenantID)
	if err != nil {
		return "", err
	}
	return schema + "." + a.spec.Table, nil
}

// Create inserts the batch, skipping rows whose id already exists. Re-runs
// of the same record on redelivery are no-ops.
func (a *Applier[T]) Create(ctx context.Context, entities []T) error {
	placeholders := make([]string, len(a.spec.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	for tenantID, group := range model.GroupByTenant(entities) {
		table, err := a.table(tenantID)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
			table, strings.Join(a.spec.Columns, ", "), strings.Join(placeholders, ", "))
		for _, entity := range group {
			tag, err := a.exec(ctx, query, a.spec.Values(entity)...)
			if err != nil {
				return fmt.Errorf("insert into %s: %w", a.spec.Table, err)
			}
			a.observe(ctx, "create", tag.RowsAffected(), entity)
		}
	}
	return nil
}

// Update applies each mutation conditionally: the row must still carry the
// version the writer read. Zero rows affected means either a redelivery of
// an already-applied record or a concurrent writer got there first; both
// are dropped, and the drop is logged so the loser is visible.
func (a *Applier[T]) Update(ctx context.Context, entities []T) error {
	for tenantID, group := range model.GroupByTenant(entities) {
		table, err := a.table(tenantID)
		if err != nil {
			return err
		}
		for _, entity := range group {
			query, args := a.updateStatement(table, entity)
			tag, err := a.exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("update %s: %w", a.spec.Table, err)
			}
			a.observe(ctx, "update", tag.RowsAffected(), entity)
		}
	}
	return nil
}

// updateStatement numbers placeholders contiguously over the non-id columns;
// the id is bound once, in the WHERE clause. Postgres rejects a prepared
// statement whose bound parameters are not all referenced, so the statement
// text and the argument slice must stay aligned.
func (a *Applier[T]) updateStatement(table string, entity T) (string, []any) {
	values := a.spec.Values(entity)
	sets := make([]string, 0, len(a.spec.Columns)-1)
	args := make([]any, 0, len(values)+1)
	for i, column := range a.spec.Columns {
		if column == "id" {
			continue
		}
		args = append(args, values[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND row_version = $%d",
		table, strings.Join(sets, ", "), len(args)+1, len(args)+2)
	args = append(args, entity.GetID(), entity.GetRowVersion()-1)
	return query, args
}

func (a *Applier[T]) observe(ctx context.Context, op string, affected int64, entity T) {
	result := "applied"
	if affected == 0 {
		result = "dropped"
		a.logger.WarnContext(ctx, "stale write dropped",
			"table", a.spec.Table,
			"operation", op,
			"id", entity.GetID(),
			"rowVersion", entity.GetRowVersion(),
		)
	}
	if a.metrics != nil {
		a.metrics.ConsumerApplies.WithLabelValues(a.spec.Table, op, result).Inc()
	}
}

// exec retries transient failures with exponential backoff so a flapping
// connection does not force a whole-batch redelivery. Anything that looks
// like a statement problem fails immediately.
func (a *Applier[T]) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	operation := func() (pgconn.CommandTag, error) {
		tag, err := a.pool.Exec(ctx, query, args...)
		if err != nil && !transient(err) {
			return tag, backoff.Permanent(err)
		}
		return tag, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}

func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; class 40: transaction rollbacks
		// such as serialization failures and deadlocks.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "40")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
