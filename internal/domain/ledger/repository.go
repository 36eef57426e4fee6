package ledger

import (
	"context"

	"stockledger/internal/core/id"
)

// Repository persists movements.
// In Database-per-Tenant architecture, implementations obtain the
// TxManager from context.
type Repository interface {
	Insert(ctx context.Context, m *Movement) error

	// Update rewrites a movement row in place. Only the INITIAL STOCK
	// upsert path is allowed to use it.
	Update(ctx context.Context, m *Movement) error

	// GetByID returns a movement or a not-found error.
	GetByID(ctx context.Context, movementID id.ID) (*Movement, error)

	Delete(ctx context.Context, movementID id.ID) error

	// List returns movements matching the filter, newest first with id
	// as the tie-break.
	List(ctx context.Context, filter Filter) ([]Movement, error)

	// CountByProduct counts movements referencing a product, matched
	// case-insensitively.
	CountByProduct(ctx context.Context, productName string) (int64, error)

	// PurgeByProduct removes all movements for a product and returns
	// the number of deleted rows.
	PurgeByProduct(ctx context.Context, productName string) (int64, error)

	// RenameProduct rewrites product_name on all movements referencing
	// oldName.
	RenameProduct(ctx context.Context, oldName, newName string) error

	// RenameParty rewrites party on all movements referencing oldName.
	RenameParty(ctx context.Context, oldName, newName string) error

	// LatestPurchaseParty returns the party of the most recent purchase
	// for a product, ordered by (movement_date, id) so same-day rows
	// tie-break by insertion order. Empty string when none.
	LatestPurchaseParty(ctx context.Context, productName string) (string, error)

	// Summary aggregates count and total quantity per kind over the
	// last days window (0 means all time).
	Summary(ctx context.Context, days int) ([]KindTotal, error)
}

// ProductState is the slice of product data the ledger needs to apply a
// stock change.
type ProductState struct {
	Name         string
	Category     string
	Supplier     string
	CurrentStock int64
	Active       bool
}

// ProductStore is the ledger's view of the product registry. GetForUpdate
// must take a row lock so concurrent stock read-modify-writes serialize.
type ProductStore interface {
	GetForUpdate(ctx context.Context, name string) (*ProductState, error)
	UpdateStock(ctx context.Context, name string, stock int64) error
	SetSupplier(ctx context.Context, name, supplier string) error
}

// PartyDirectory upserts parties referenced by movements.
type PartyDirectory interface {
	Upsert(ctx context.Context, name, partyType string) error
}

// VersionStore bumps cache-invalidation counters per entity family.
type VersionStore interface {
	Bump(ctx context.Context, family string) error
}

// Auditor records an audit trail entry. Optional; a nil Auditor disables
// auditing.
type Auditor interface {
	LogChange(ctx context.Context, entityType, entityRef, action string, changes map[string]any) error
}
