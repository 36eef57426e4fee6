// Package ledger_repo provides the PostgreSQL implementation of the
// movement ledger repository.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/party"
	"stockledger/internal/domain/product"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "movements"

// MovementRepo implements ledger.Repository. It also serves the rename
// and purge cascades the registries need.
type MovementRepo struct {
	builder squirrel.StatementBuilderType
	columns []string
}

// NewMovementRepo creates a new movement repository.
func NewMovementRepo() *MovementRepo {
	return &MovementRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns: postgres.ExtractDBColumns[ledger.Movement](),
	}
}

func (r *MovementRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Insert writes a movement row.
func (r *MovementRepo) Insert(ctx context.Context, m *ledger.Movement) error {
	q := r.builder.Insert(movementsTable).SetMap(postgres.StructToMap(m))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// Update rewrites a movement row in place.
func (r *MovementRepo) Update(ctx context.Context, m *ledger.Movement) error {
	values := postgres.StructToMap(m)
	delete(values, "id")
	delete(values, "created_at")

	q := r.builder.Update(movementsTable).
		SetMap(values).
		Where(squirrel.Eq{"id": m.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("movement", m.ID.String())
	}
	return nil
}

// GetByID returns a movement or a not-found error.
func (r *MovementRepo) GetByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	q := r.builder.Select(r.columns...).
		From(movementsTable).
		Where(squirrel.Eq{"id": movementID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m ledger.Movement
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement", movementID.String())
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// Delete removes a movement row. Zero matches is fine; the service
// treats a missing movement as a no-op.
func (r *MovementRepo) Delete(ctx context.Context, movementID id.ID) error {
	q := r.builder.Delete(movementsTable).Where(squirrel.Eq{"id": movementID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	return nil
}

// listQuery builds the filtered list query. The days window filters
// against the stored ISO date string, so lexicographic comparison is
// chronological.
func (r *MovementRepo) listQuery(filter ledger.Filter) squirrel.SelectBuilder {
	q := r.builder.Select(r.columns...).
		From(movementsTable).
		OrderBy("movement_date DESC", "id DESC")

	if filter.ProductName != "" {
		q = q.Where(squirrel.Expr("LOWER(product_name) = LOWER(?)", filter.ProductName))
	}
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.DaysWindow > 0 {
		q = q.Where(squirrel.GtOrEq{"movement_date": cutoffDate(filter.DaysWindow)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// List returns movements newest first, id as the tie-break.
func (r *MovementRepo) List(ctx context.Context, filter ledger.Filter) ([]ledger.Movement, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []ledger.Movement
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// CountByProduct counts movements referencing a product.
func (r *MovementRepo) CountByProduct(ctx context.Context, productName string) (int64, error) {
	sql := `SELECT COUNT(*) FROM movements WHERE LOWER(product_name) = LOWER($1)`

	var count int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, productName).Scan(&count); err != nil {
		return 0, fmt.Errorf("count movements: %w", err)
	}
	return count, nil
}

// PurgeByProduct removes all movements for a product.
func (r *MovementRepo) PurgeByProduct(ctx context.Context, productName string) (int64, error) {
	sql := `DELETE FROM movements WHERE LOWER(product_name) = LOWER($1)`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, productName)
	if err != nil {
		return 0, fmt.Errorf("purge movements: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RenameProduct rewrites product_name on all movements referencing oldName.
func (r *MovementRepo) RenameProduct(ctx context.Context, oldName, newName string) error {
	sql := `UPDATE movements SET product_name = $1 WHERE LOWER(product_name) = LOWER($2)`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, newName, oldName); err != nil {
		return fmt.Errorf("rename movement product: %w", err)
	}
	return nil
}

// RenameParty rewrites party on all movements referencing oldName.
func (r *MovementRepo) RenameParty(ctx context.Context, oldName, newName string) error {
	sql := `UPDATE movements SET party = $1 WHERE LOWER(party) = LOWER($2)`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, newName, oldName); err != nil {
		return fmt.Errorf("rename movement party: %w", err)
	}
	return nil
}

// LatestPurchaseParty returns the party of the most recent purchase.
// Same-day purchases tie-break by id; ids are time-ordered, so this is
// insertion order.
func (r *MovementRepo) LatestPurchaseParty(ctx context.Context, productName string) (string, error) {
	sql := `
		SELECT party
		FROM movements
		WHERE LOWER(product_name) = LOWER($1) AND kind = $2
		ORDER BY movement_date DESC, id DESC
		LIMIT 1
	`

	var result string
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, productName, ledger.KindPurchase).Scan(&result)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("latest purchase party: %w", err)
	}
	return result, nil
}

// summaryQuery builds the per-kind aggregate query. days 0 means all
// time.
func (r *MovementRepo) summaryQuery(days int) squirrel.SelectBuilder {
	q := r.builder.Select(
		"kind",
		"COUNT(*) AS movement_count",
		"COALESCE(SUM(quantity), 0) AS total_quantity",
	).From(movementsTable).
		GroupBy("kind").
		OrderBy("kind")

	if days > 0 {
		q = q.Where(squirrel.GtOrEq{"movement_date": cutoffDate(days)})
	}
	return q
}

// Summary aggregates count and total quantity per kind over the last
// days window.
func (r *MovementRepo) Summary(ctx context.Context, days int) ([]ledger.KindTotal, error) {
	sql, args, err := r.summaryQuery(days).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var totals []ledger.KindTotal
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &totals, sql, args...); err != nil {
		return nil, fmt.Errorf("select summary: %w", err)
	}
	return totals, nil
}

// cutoffDate returns the ISO date string N days back from today (UTC).
func cutoffDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
}

// Ensure interface compliance.
var (
	_ ledger.Repository   = (*MovementRepo)(nil)
	_ product.MovementLog = (*MovementRepo)(nil)
	_ party.MovementLog   = (*MovementRepo)(nil)
)
