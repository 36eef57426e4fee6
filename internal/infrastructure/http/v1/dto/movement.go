package dto

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// --- Request DTOs ---

// RecordMovementRequest is the request body for recording a movement.
// Price is a string so callers can send the "N/A" sentinel; date accepts
// several layouts and is normalized to ISO at the domain boundary.
type RecordMovementRequest struct {
	ProductName string `json:"productName" binding:"required"`
	Category    string `json:"category"`
	Kind        string `json:"kind" binding:"required"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	Party       string `json:"party"`
	Notes       string `json:"notes"`
	Date        string `json:"date"`
}

// ToInput converts DTO to domain input.
func (r *RecordMovementRequest) ToInput() ledger.RecordInput {
	return ledger.RecordInput{
		ProductName: r.ProductName,
		Category:    r.Category,
		Kind:        r.Kind,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Party:       r.Party,
		Notes:       r.Notes,
		Date:        r.Date,
	}
}

// InitialStockRequest is the request body for the initial stock upsert.
// MovementID targets an existing INITIAL STOCK row for in-place update.
type InitialStockRequest struct {
	ProductName string `json:"productName" binding:"required"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	Party       string `json:"party"`
	Notes       string `json:"notes"`
	Date        string `json:"date"`
	MovementID  string `json:"movementId"`
}

// ToInput converts DTO to domain input.
func (r *InitialStockRequest) ToInput() (ledger.InitialStockInput, error) {
	in := ledger.InitialStockInput{
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Price:       r.Price,
		Party:       r.Party,
		Notes:       r.Notes,
		Date:        r.Date,
	}
	if r.MovementID != "" {
		movementID, err := id.Parse(r.MovementID)
		if err != nil {
			return ledger.InitialStockInput{}, apperror.NewValidation("invalid movement id").
				WithDetail("field", "movementId").
				WithDetail("value", r.MovementID)
		}
		in.MovementID = &movementID
	}
	return in, nil
}

// MovementListQuery holds movement list query parameters.
type MovementListQuery struct {
	ProductName string `form:"productName"`
	Kind        string `form:"kind"`
	Days        int    `form:"days" binding:"omitempty,min=0"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters to a domain filter.
func (q *MovementListQuery) ToFilter() ledger.Filter {
	return ledger.Filter{
		ProductName: q.ProductName,
		Kind:        ledger.Kind(q.Kind),
		DaysWindow:  q.Days,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
}

// --- Response DTOs ---

// MovementResponse is the response body for a movement.
type MovementResponse struct {
	ID              string      `json:"id"`
	ProductName     string      `json:"productName"`
	ProductCategory string      `json:"productCategory"`
	Kind            ledger.Kind `json:"kind"`
	Quantity        int64       `json:"quantity"`
	Price           string      `json:"price"`
	Party           string      `json:"party,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	MovementDate    string      `json:"movementDate"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// FromMovement creates response DTO from a ledger entry. A null price
// renders as the "N/A" sentinel the clients expect.
func FromMovement(m *ledger.Movement) *MovementResponse {
	price := ledger.PriceNotApplicable
	if m.Price.Valid {
		price = m.Price.Decimal.String()
	}

	return &MovementResponse{
		ID:              m.ID.String(),
		ProductName:     m.ProductName,
		ProductCategory: m.ProductCategory,
		Kind:            m.Kind,
		Quantity:        m.Quantity,
		Price:           price,
		Party:           m.Party,
		Notes:           m.Notes,
		MovementDate:    m.MovementDate,
		CreatedAt:       m.CreatedAt,
	}
}

// FromMovements maps a movement slice to response DTOs.
func FromMovements(items []ledger.Movement) []*MovementResponse {
	out := make([]*MovementResponse, len(items))
	for i := range items {
		out[i] = FromMovement(&items[i])
	}
	return out
}

// SummaryResponse carries per-kind aggregates over the requested window.
type SummaryResponse struct {
	Days   int                `json:"days"`
	Totals []ledger.KindTotal `json:"totals"`
}
