package party

import "context"

// Repository persists parties. Name lookups are case-insensitive.
// In Database-per-Tenant architecture, implementations obtain the
// TxManager from context.
type Repository interface {
	Create(ctx context.Context, p *Party) error

	// GetByName returns a party matched case-insensitively, active or
	// not, or a not-found error.
	GetByName(ctx context.Context, name string) (*Party, error)

	List(ctx context.Context, filter Filter) ([]Party, error)

	// Update rewrites the row identified by p.ID.
	Update(ctx context.Context, p *Party) error

	SetActive(ctx context.Context, name string, active bool) error
}

// SupplierFields is the party registry's view of the product registry,
// used to cascade renames into denormalized supplier fields.
type SupplierFields interface {
	RenameSupplier(ctx context.Context, oldName, newName string) error
}

// MovementLog cascades party renames into historical movement rows.
type MovementLog interface {
	RenameParty(ctx context.Context, oldName, newName string) error
}

// VersionStore bumps cache-invalidation counters per entity family.
type VersionStore interface {
	Bump(ctx context.Context, family string) error
}

// Auditor records an audit trail entry. Optional; nil disables auditing.
type Auditor interface {
	LogChange(ctx context.Context, entityType, entityRef, action string, changes map[string]any) error
}
