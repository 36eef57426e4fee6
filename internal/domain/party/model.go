// Package party provides the supplier/customer directory with
// merge-on-conflict type normalization.
package party

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Type classifies a party.
type Type string

const (
	TypeSupplier Type = "Supplier"
	TypeCustomer Type = "Customer"
	TypeOther    Type = "Other"
)

// ParseType normalizes a raw type string, defaulting to Other.
func ParseType(raw string) Type {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "supplier":
		return TypeSupplier
	case "customer":
		return TypeCustomer
	default:
		return TypeOther
	}
}

// MergeType resolves the type when a party is re-inserted with a
// conflicting classification. Supplier and Customer dominate Other; a
// Supplier vs Customer conflict keeps the existing value, leaving the
// ambiguity to a human.
func MergeType(existing, incoming Type) Type {
	if existing == TypeOther && incoming != TypeOther {
		return incoming
	}
	return existing
}

// Party is a directory entry. Movements keep the historical party name
// even after deactivation; the directory is a convenience, not a hard
// constraint.
type Party struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      Type      `db:"type" json:"type"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Filter narrows party reads.
type Filter struct {
	Type            Type
	IncludeInactive bool
}

// UpsertInput carries caller-supplied values for an upsert.
type UpsertInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Validate checks upsert input.
func (in *UpsertInput) Validate(_ context.Context) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperror.NewValidation("party name is required").
			WithDetail("field", "name")
	}
	return nil
}
