package registry_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/party"
	"stockledger/internal/infrastructure/storage/postgres"
)

const partiesTable = "parties"

// PartyRepo implements party.Repository.
type PartyRepo struct {
	builder squirrel.StatementBuilderType
	columns []string
}

// NewPartyRepo creates a new party repository.
func NewPartyRepo() *PartyRepo {
	return &PartyRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns: postgres.ExtractDBColumns[party.Party](),
	}
}

func (r *PartyRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a party row.
func (r *PartyRepo) Create(ctx context.Context, p *party.Party) error {
	q := r.builder.Insert(partiesTable).SetMap(postgres.StructToMap(p))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

// GetByName returns a party matched case-insensitively, active or not.
func (r *PartyRepo) GetByName(ctx context.Context, name string) (*party.Party, error) {
	q := r.builder.Select(r.columns...).
		From(partiesTable).
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", name)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p party.Party
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("party", name)
		}
		return nil, fmt.Errorf("get party: %w", err)
	}
	return &p, nil
}

// List returns parties matching the filter, sorted by name.
func (r *PartyRepo) List(ctx context.Context, filter party.Filter) ([]party.Party, error) {
	q := r.builder.Select(r.columns...).
		From(partiesTable).
		OrderBy("LOWER(name) ASC")

	if !filter.IncludeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var parties []party.Party
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &parties, sql, args...); err != nil {
		return nil, fmt.Errorf("select parties: %w", err)
	}
	return parties, nil
}

// Update rewrites the row identified by p.ID.
func (r *PartyRepo) Update(ctx context.Context, p *party.Party) error {
	values := postgres.StructToMap(p)
	delete(values, "id")
	delete(values, "created_at")

	q := r.builder.Update(partiesTable).
		SetMap(values).
		Where(squirrel.Eq{"id": p.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("party", p.Name)
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *PartyRepo) SetActive(ctx context.Context, name string, active bool) error {
	q := r.builder.Update(partiesTable).
		Set("active", active).
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", name))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update party active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("party", name)
	}
	return nil
}

// Ensure interface compliance.
var _ party.Repository = (*PartyRepo)(nil)
