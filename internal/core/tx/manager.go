// Package tx declares the transaction boundary the domain services
// program against. The Postgres implementation lives in
// infrastructure/storage/postgres; in the Database-per-Tenant setup a
// Manager bound to the tenant's pool travels in the request context.
package tx

import (
	"context"
)

// Manager runs a function inside a database transaction. An error from
// fn rolls the transaction back, nil commits it. A call made while a
// transaction is already open in ctx joins that transaction instead of
// opening a new one, so a service method can compose repository calls
// and nested service calls into one atomic unit.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
