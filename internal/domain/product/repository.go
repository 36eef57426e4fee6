package product

import "context"

// Repository persists products. Name lookups are case-insensitive.
// In Database-per-Tenant architecture, implementations obtain the
// TxManager from context.
type Repository interface {
	Create(ctx context.Context, p *Product) error

	// GetByName returns a product matched case-insensitively, active or
	// not, or a not-found error.
	GetByName(ctx context.Context, name string) (*Product, error)

	List(ctx context.Context, filter Filter) ([]Product, error)

	// Update rewrites the row identified by p.ID, bumping version and
	// updated_at.
	Update(ctx context.Context, p *Product) error

	SetActive(ctx context.Context, name string, active bool) error

	UpdateStock(ctx context.Context, name string, stock int64) error

	SetSupplier(ctx context.Context, name, supplier string) error

	// RenameSupplier rewrites the denormalized supplier field on all
	// products referencing oldName. Used by the party rename cascade.
	RenameSupplier(ctx context.Context, oldName, newName string) error
}

// MovementLog is the registry's view of the movement ledger, used for the
// rename cascade and the purge-on-delete side effect.
type MovementLog interface {
	PurgeByProduct(ctx context.Context, productName string) (int64, error)
	RenameProduct(ctx context.Context, oldName, newName string) error
}

// StockInitializer records a starting quantity for a freshly created
// product through the ledger, keeping it the single source of stock truth.
type StockInitializer interface {
	InitializeStock(ctx context.Context, productName string, quantity int64, costPrice string) error
}

// VersionStore bumps cache-invalidation counters per entity family.
type VersionStore interface {
	Bump(ctx context.Context, family string) error
}

// Auditor records an audit trail entry. Optional; nil disables auditing.
type Auditor interface {
	LogChange(ctx context.Context, entityType, entityRef, action string, changes map[string]any) error
}
