// Package product provides the product registry: CRUD over products with
// case-insensitive name uniqueness, soft-delete/restore and rename
// propagation into the movement ledger.
package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Product is a registry entry. CurrentStock is derived state owned by the
// movement ledger; the registry never writes it directly except when
// purging movements on delete.
type Product struct {
	ID           id.ID           `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Category     string          `db:"category" json:"category"`
	Brand        string          `db:"brand" json:"brand"`
	Description  string          `db:"description" json:"description,omitempty"`
	ImageRef     string          `db:"image_ref" json:"imageRef,omitempty"`
	CurrentStock int64           `db:"current_stock" json:"currentStock"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"costPrice"`
	SalePrice    decimal.Decimal `db:"sale_price" json:"salePrice"`
	Supplier     string          `db:"supplier" json:"supplier,omitempty"`
	Active       bool            `db:"active" json:"active"`
	Version      int             `db:"version" json:"version"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// CreateInput carries caller-supplied values for a new product.
// InitialStock is recorded through the ledger, never written to the row.
type CreateInput struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	Description  string          `json:"description"`
	ImageRef     string          `json:"imageRef"`
	InitialStock int64           `json:"initialStock"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	Supplier     string          `json:"supplier"`
}

// UpdateInput carries updatable fields. Name may differ from the current
// name, which triggers a rename cascade.
type UpdateInput struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	ImageRef    string          `json:"imageRef"`
	CostPrice   decimal.Decimal `json:"costPrice"`
	SalePrice   decimal.Decimal `json:"salePrice"`
	Supplier    string          `json:"supplier"`
}

// Filter narrows product reads.
type Filter struct {
	Category        string
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Validate implements boundary validation; the caller's values are never
// trusted even when the presentation layer validated them already.
func (in *CreateInput) Validate(_ context.Context) error {
	if err := validateRequired(in.Name, in.Category, in.Brand); err != nil {
		return err
	}
	if in.InitialStock < 0 {
		return apperror.NewValidation("initial stock cannot be negative").
			WithDetail("field", "initialStock")
	}
	return validatePrices(in.CostPrice, in.SalePrice)
}

// Validate checks update input.
func (in *UpdateInput) Validate(_ context.Context) error {
	if err := validateRequired(in.Name, in.Category, in.Brand); err != nil {
		return err
	}
	return validatePrices(in.CostPrice, in.SalePrice)
}

func validateRequired(name, category, brand string) error {
	if strings.TrimSpace(name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(category) == "" {
		return apperror.NewValidation("category is required").WithDetail("field", "category")
	}
	if strings.TrimSpace(brand) == "" {
		return apperror.NewValidation("brand is required").WithDetail("field", "brand")
	}
	return nil
}

func validatePrices(cost, sale decimal.Decimal) error {
	if cost.IsNegative() {
		return apperror.NewValidation("cost price cannot be negative").
			WithDetail("field", "costPrice")
	}
	if sale.IsNegative() {
		return apperror.NewValidation("sale price cannot be negative").
			WithDetail("field", "salePrice")
	}
	return nil
}
