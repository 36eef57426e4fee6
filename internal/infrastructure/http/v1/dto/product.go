package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/product"
)

func parsePrice(raw, field string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperror.NewValidation("price must be numeric").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return d, nil
}

// --- Request DTOs ---

// CreateProductRequest is the request body for registering a product.
// Prices arrive as strings so callers can send "12.50" without float
// rounding; empty means zero.
type CreateProductRequest struct {
	Name         string `json:"name" binding:"required"`
	Category     string `json:"category" binding:"required"`
	Brand        string `json:"brand" binding:"required"`
	Description  string `json:"description"`
	ImageRef     string `json:"imageRef"`
	InitialStock int64  `json:"initialStock"`
	CostPrice    string `json:"costPrice"`
	SalePrice    string `json:"salePrice"`
	Supplier     string `json:"supplier"`
}

// ToInput converts DTO to domain input.
func (r *CreateProductRequest) ToInput() (product.CreateInput, error) {
	cost, err := parsePrice(r.CostPrice, "costPrice")
	if err != nil {
		return product.CreateInput{}, err
	}
	sale, err := parsePrice(r.SalePrice, "salePrice")
	if err != nil {
		return product.CreateInput{}, err
	}

	return product.CreateInput{
		Name:         r.Name,
		Category:     r.Category,
		Brand:        r.Brand,
		Description:  r.Description,
		ImageRef:     r.ImageRef,
		InitialStock: r.InitialStock,
		CostPrice:    cost,
		SalePrice:    sale,
		Supplier:     r.Supplier,
	}, nil
}

// UpdateProductRequest is the request body for updating a product.
// A name differing from the path parameter renames the product.
type UpdateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Brand       string `json:"brand" binding:"required"`
	Description string `json:"description"`
	ImageRef    string `json:"imageRef"`
	CostPrice   string `json:"costPrice"`
	SalePrice   string `json:"salePrice"`
	Supplier    string `json:"supplier"`
}

// ToInput converts DTO to domain input.
func (r *UpdateProductRequest) ToInput() (product.UpdateInput, error) {
	cost, err := parsePrice(r.CostPrice, "costPrice")
	if err != nil {
		return product.UpdateInput{}, err
	}
	sale, err := parsePrice(r.SalePrice, "salePrice")
	if err != nil {
		return product.UpdateInput{}, err
	}

	return product.UpdateInput{
		Name:        r.Name,
		Category:    r.Category,
		Brand:       r.Brand,
		Description: r.Description,
		ImageRef:    r.ImageRef,
		CostPrice:   cost,
		SalePrice:   sale,
		Supplier:    r.Supplier,
	}, nil
}

// ProductListQuery holds product list query parameters.
type ProductListQuery struct {
	Category        string `form:"category"`
	Search          string `form:"search"`
	IncludeInactive bool   `form:"includeInactive"`
	Limit           int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset          int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters to a domain filter.
func (q *ProductListQuery) ToFilter() product.Filter {
	return product.Filter{
		Category:        q.Category,
		Search:          q.Search,
		IncludeInactive: q.IncludeInactive,
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	Description  string          `json:"description,omitempty"`
	ImageRef     string          `json:"imageRef,omitempty"`
	CurrentStock int64           `json:"currentStock"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	Supplier     string          `json:"supplier,omitempty"`
	Active       bool            `json:"active"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// FromProduct creates response DTO from domain product.
func FromProduct(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Category:     p.Category,
		Brand:        p.Brand,
		Description:  p.Description,
		ImageRef:     p.ImageRef,
		CurrentStock: p.CurrentStock,
		CostPrice:    p.CostPrice,
		SalePrice:    p.SalePrice,
		Supplier:     p.Supplier,
		Active:       p.Active,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// FromProducts maps a product slice to response DTOs.
func FromProducts(items []product.Product) []*ProductResponse {
	out := make([]*ProductResponse, len(items))
	for i := range items {
		out[i] = FromProduct(&items[i])
	}
	return out
}

// LatestPartyResponse carries the most recent purchase party of a product.
type LatestPartyResponse struct {
	ProductName string `json:"productName"`
	Party       string `json:"party"`
}
