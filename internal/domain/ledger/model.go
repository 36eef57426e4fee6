package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// PriceNotApplicable is the sentinel callers send when a movement has no
// meaningful price (typically adjustments). Stored as null.
const PriceNotApplicable = "N/A"

// Movement is one ledger entry. Immutable once written, except the
// INITIAL STOCK row which may be updated in place while it remains the
// product's sole movement.
type Movement struct {
	ID              id.ID               `db:"id" json:"id"`
	ProductName     string              `db:"product_name" json:"productName"`
	ProductCategory string              `db:"product_category" json:"productCategory"`
	Kind            Kind                `db:"kind" json:"kind"`
	Quantity        int64               `db:"quantity" json:"quantity"`
	Price           decimal.NullDecimal `db:"price" json:"price"`
	Party           string              `db:"party" json:"party,omitempty"`
	Notes           string              `db:"notes" json:"notes,omitempty"`
	MovementDate    string              `db:"movement_date" json:"movementDate"`
	CreatedAt       time.Time           `db:"created_at" json:"createdAt"`
}

// RecordInput carries caller-supplied values for recording a movement.
// Price and Date arrive as strings and are normalized at this boundary.
type RecordInput struct {
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	Party       string `json:"party"`
	Notes       string `json:"notes"`
	Date        string `json:"date"`
}

// InitialStockInput carries values for the initial stock upsert.
type InitialStockInput struct {
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	Party       string `json:"party"`
	Notes       string `json:"notes"`
	Date        string `json:"date"`
	MovementID  *id.ID `json:"movementId,omitempty"`
}

// Filter narrows movement reads.
type Filter struct {
	ProductName string
	Kind        Kind
	DaysWindow  int // 0 means unbounded
	Limit       int
	Offset      int
}

// KindTotal is an aggregate row for the movement summary.
type KindTotal struct {
	Kind          Kind  `db:"kind" json:"kind"`
	MovementCount int64 `db:"movement_count" json:"movementCount"`
	TotalQuantity int64 `db:"total_quantity" json:"totalQuantity"`
}

// acceptedDateLayouts are the input formats normalized to ISO at write time.
var acceptedDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02.01.2006",
}

// NormalizeDate converts a caller-supplied date to ISO-8601 YYYY-MM-DD.
// An empty input means today (UTC). Date filtering compares these strings
// lexicographically, so the stored form must be exactly this layout.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC().Format("2006-01-02"), nil
	}

	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	return "", apperror.NewValidation("unrecognized date format").
		WithDetail("field", "date").
		WithDetail("value", raw)
}

// NormalizePrice converts a caller-supplied price to a nullable decimal.
// Empty string and the "N/A" sentinel map to null.
func NormalizePrice(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, PriceNotApplicable) {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, apperror.NewValidation("price must be numeric").
			WithDetail("field", "price").
			WithDetail("value", raw)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, apperror.NewValidation("price cannot be negative").
			WithDetail("field", "price")
	}

	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// Validate checks record input before any storage work.
func (in *RecordInput) Validate() error {
	if strings.TrimSpace(in.ProductName) == "" {
		return apperror.NewValidation("product name is required").
			WithDetail("field", "productName")
	}

	kind, ok := ParseKind(in.Kind)
	if !ok {
		return apperror.NewValidation("unknown movement kind").
			WithDetail("field", "kind").
			WithDetail("value", in.Kind)
	}

	// Adjustments may carry a negative quantity, everything else must be positive.
	if kind == KindAdjustment {
		if in.Quantity == 0 {
			return apperror.NewValidation("adjustment quantity cannot be zero").
				WithDetail("field", "quantity")
		}
	} else if in.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	return nil
}

// Validate checks initial stock input.
func (in *InitialStockInput) Validate() error {
	if strings.TrimSpace(in.ProductName) == "" {
		return apperror.NewValidation("product name is required").
			WithDetail("field", "productName")
	}
	if in.Quantity < 0 {
		return apperror.NewValidation("initial stock cannot be negative").
			WithDetail("field", "quantity")
	}
	return nil
}
