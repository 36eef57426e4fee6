// Package registry_repo provides PostgreSQL implementations for the
// product and party registries.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package registry_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/product"
	"stockledger/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	builder squirrel.StatementBuilderType
	columns []string
}

// NewProductRepo creates a new product repository.
func NewProductRepo() *ProductRepo {
	return &ProductRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns: postgres.ExtractDBColumns[product.Product](),
	}
}

func (r *ProductRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a product row.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	q := r.builder.Insert(productsTable).SetMap(postgres.StructToMap(p))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByName returns a product matched case-insensitively, active or not.
func (r *ProductRepo) GetByName(ctx context.Context, name string) (*product.Product, error) {
	q := r.builder.Select(r.columns...).
		From(productsTable).
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", name)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", name)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetForUpdate returns the ledger's view of a product with a row lock so
// concurrent stock read-modify-writes serialize.
func (r *ProductRepo) GetForUpdate(ctx context.Context, name string) (*ledger.ProductState, error) {
	sql := `
		SELECT name, category, supplier, current_stock, active
		FROM products
		WHERE LOWER(name) = LOWER($1)
		FOR UPDATE
	`

	var state ledger.ProductState
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, name).Scan(
		&state.Name, &state.Category, &state.Supplier, &state.CurrentStock, &state.Active)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", name)
		}
		return nil, fmt.Errorf("get product for update: %w", err)
	}
	return &state, nil
}

// List returns products matching the filter, sorted by name.
func (r *ProductRepo) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	q := r.builder.Select(r.columns...).
		From(productsTable).
		OrderBy("LOWER(name) ASC")

	if !filter.IncludeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Expr("LOWER(category) = LOWER(?)", filter.Category))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"brand": pattern},
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []product.Product
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return products, nil
}

// Update rewrites the row identified by p.ID, bumping version and
// updated_at.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	values := postgres.StructToMap(p)
	delete(values, "id")
	delete(values, "version")
	delete(values, "created_at")
	values["updated_at"] = time.Now().UTC()

	q := r.builder.Update(productsTable).
		SetMap(values).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", p.Name)
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *ProductRepo) SetActive(ctx context.Context, name string, active bool) error {
	return r.setField(ctx, name, "active", active)
}

// UpdateStock writes the derived stock level.
func (r *ProductRepo) UpdateStock(ctx context.Context, name string, stock int64) error {
	return r.setField(ctx, name, "current_stock", stock)
}

// SetSupplier writes the denormalized supplier field.
func (r *ProductRepo) SetSupplier(ctx context.Context, name, supplier string) error {
	return r.setField(ctx, name, "supplier", supplier)
}

func (r *ProductRepo) setField(ctx context.Context, name, column string, value any) error {
	q := r.builder.Update(productsTable).
		Set(column, value).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", name))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update product %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", name)
	}
	return nil
}

// RenameSupplier rewrites the supplier field on all products referencing
// oldName. Part of the party rename cascade; zero matches is fine.
func (r *ProductRepo) RenameSupplier(ctx context.Context, oldName, newName string) error {
	q := r.builder.Update(productsTable).
		Set("supplier", newName).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Expr("LOWER(supplier) = LOWER(?)", oldName))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("rename supplier: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var (
	_ product.Repository  = (*ProductRepo)(nil)
	_ ledger.ProductStore = (*ProductRepo)(nil)
)
