package postgres

import (
	"context"
	"fmt"
)

// Data families tracked in data_versions. Writers bump the family counter
// inside the same transaction as the write, which invalidates cached reads.
const (
	FamilyProducts  = "products"
	FamilyMovements = "movements"
	FamilyParties   = "parties"
)

// VersionStore reads and bumps per-family data version counters.
type VersionStore struct{}

// NewVersionStore creates a version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{}
}

// Current returns the version counter for a family. A family that was never
// bumped reports 0.
func (s *VersionStore) Current(ctx context.Context, family string) (int64, error) {
	q := MustGetTxManager(ctx).GetQuerier(ctx)

	var version int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM data_versions WHERE family = $1`,
		family,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read data version %q: %w", family, err)
	}
	return version, nil
}

// Bump increments the version counter for a family. Must be called inside
// the transaction that performs the write so the bump is atomic with it.
func (s *VersionStore) Bump(ctx context.Context, family string) error {
	q := MustGetTxManager(ctx).GetQuerier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO data_versions (family, version) VALUES ($1, 1)
		ON CONFLICT (family) DO UPDATE SET version = data_versions.version + 1`,
		family,
	)
	if err != nil {
		return fmt.Errorf("bump data version %q: %w", family, err)
	}
	return nil
}
