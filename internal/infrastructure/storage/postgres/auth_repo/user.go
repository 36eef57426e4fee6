// Package auth_repo provides the PostgreSQL implementation of the user
// repository.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	builder squirrel.StatementBuilderType
	columns []string
}

// NewUserRepo creates a new user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns: postgres.ExtractDBColumns[auth.User](),
	}
}

func (r *UserRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a user row.
func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	q := r.builder.Insert(usersTable).SetMap(postgres.StructToMap(u))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns a user or a not-found error.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	q := r.builder.Select(r.columns...).
		From(usersTable).
		Where(squirrel.Eq{"id": userID}).
		Limit(1)

	return r.getOne(ctx, q, userID.String())
}

// GetByUsername returns a user matched case-insensitively.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	q := r.builder.Select(r.columns...).
		From(usersTable).
		Where(squirrel.Expr("LOWER(username) = LOWER(?)", username)).
		Limit(1)

	return r.getOne(ctx, q, username)
}

func (r *UserRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, ref string) (*auth.User, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u auth.User
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", ref)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// List returns all users, oldest first.
func (r *UserRepo) List(ctx context.Context) ([]auth.User, error) {
	q := r.builder.Select(r.columns...).
		From(usersTable).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var users []auth.User
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &users, sql, args...); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return users, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// UpdateStatus sets the account status.
func (r *UserRepo) UpdateStatus(ctx context.Context, userID id.ID, status string) error {
	return r.setField(ctx, userID, "status", status)
}

// UpdateRole sets the account role.
func (r *UserRepo) UpdateRole(ctx context.Context, userID id.ID, role string) error {
	return r.setField(ctx, userID, "role", role)
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, userID id.ID) error {
	q := r.builder.Delete(usersTable).Where(squirrel.Eq{"id": userID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}
	return nil
}

func (r *UserRepo) setField(ctx context.Context, userID id.ID, column string, value any) error {
	q := r.builder.Update(usersTable).
		Set(column, value).
		Where(squirrel.Eq{"id": userID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}
	return nil
}

// Ensure interface compliance.
var _ auth.UserRepository = (*UserRepo)(nil)
