// Package ledger implements the movement ledger, the stock-consistency
// engine. Every stock change is recorded as a movement, and a product's
// current stock always equals the signed sum of its movements.
package ledger

import "strings"

// Kind is the movement kind. It determines the signed effect a movement
// has on the product's stock.
type Kind string

const (
	KindPurchase     Kind = "PURCHASE"
	KindReceived     Kind = "RECEIVED"
	KindSale         Kind = "SALE"
	KindIssued       Kind = "ISSUED"
	KindAdjustment   Kind = "ADJUSTMENT"
	KindInitialStock Kind = "INITIAL STOCK"
)

// ParseKind normalizes a raw kind string. Matching is case-insensitive.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	return k, k.Valid()
}

// Valid reports whether k is a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindReceived, KindSale, KindIssued, KindAdjustment, KindInitialStock:
		return true
	}
	return false
}

// IsInbound reports whether the kind adds stock.
func (k Kind) IsInbound() bool {
	return k == KindPurchase || k == KindReceived
}

// IsOutbound reports whether the kind removes stock.
func (k Kind) IsOutbound() bool {
	return k == KindSale || k == KindIssued
}

// Apply computes the new stock level after a movement of this kind.
// The second return value is false when the movement would drive stock
// negative, in which case the movement must be rejected.
//
// INITIAL STOCK sets the level directly instead of adding to it.
func (k Kind) Apply(current, quantity int64) (int64, bool) {
	switch k {
	case KindPurchase, KindReceived:
		return current + quantity, true
	case KindSale, KindIssued:
		if quantity > current {
			return current, false
		}
		return current - quantity, true
	case KindAdjustment:
		next := current + quantity
		if next < 0 {
			return current, false
		}
		return next, true
	case KindInitialStock:
		if quantity < 0 {
			return current, false
		}
		return quantity, true
	}
	return current, false
}

// ReversalDelta returns the stock delta that undoes a movement of this
// kind, used when a movement row is deleted.
func (k Kind) ReversalDelta(quantity int64) int64 {
	switch k {
	case KindPurchase, KindReceived, KindInitialStock:
		return -quantity
	case KindSale, KindIssued:
		return quantity
	case KindAdjustment:
		return -quantity
	}
	return 0
}
