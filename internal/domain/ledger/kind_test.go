package ledger

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
		ok    bool
	}{
		{"PURCHASE", KindPurchase, true},
		{"purchase", KindPurchase, true},
		{"  Sale  ", KindSale, true},
		{"initial stock", KindInitialStock, true},
		{"ADJUSTMENT", KindAdjustment, true},
		{"TRANSFER", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseKind(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseKind(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKindApply(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		current  int64
		quantity int64
		want     int64
		ok       bool
	}{
		{"purchase adds", KindPurchase, 10, 5, 15, true},
		{"received adds", KindReceived, 0, 7, 7, true},
		{"sale subtracts", KindSale, 10, 4, 6, true},
		{"sale exact", KindSale, 10, 10, 0, true},
		{"sale over stock", KindSale, 10, 11, 10, false},
		{"issued subtracts", KindIssued, 5, 2, 3, true},
		{"issued over stock", KindIssued, 1, 2, 1, false},
		{"adjustment positive", KindAdjustment, 5, 3, 8, true},
		{"adjustment negative", KindAdjustment, 5, -3, 2, true},
		{"adjustment below zero", KindAdjustment, 5, -6, 5, false},
		{"initial stock sets level", KindInitialStock, 99, 12, 12, true},
		{"initial stock negative", KindInitialStock, 0, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.kind.Apply(tt.current, tt.quantity)
			if ok != tt.ok {
				t.Fatalf("Apply(%d, %d) ok = %v, want %v", tt.current, tt.quantity, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Apply(%d, %d) = %d, want %d", tt.current, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestKindReversalDelta(t *testing.T) {
	tests := []struct {
		kind     Kind
		quantity int64
		want     int64
	}{
		{KindPurchase, 20, -20},
		{KindReceived, 5, -5},
		{KindInitialStock, 10, -10},
		{KindSale, 5, 5},
		{KindIssued, 3, 3},
		{KindAdjustment, 4, -4},
		{KindAdjustment, -4, 4},
	}

	for _, tt := range tests {
		if got := tt.kind.ReversalDelta(tt.quantity); got != tt.want {
			t.Errorf("%s.ReversalDelta(%d) = %d, want %d", tt.kind, tt.quantity, got, tt.want)
		}
	}
}

// Reversal must restore the level Apply started from, for every kind.
func TestApplyThenReversalRoundTrip(t *testing.T) {
	cases := []struct {
		kind     Kind
		current  int64
		quantity int64
	}{
		{KindPurchase, 10, 20},
		{KindReceived, 0, 5},
		{KindSale, 15, 5},
		{KindIssued, 8, 8},
		{KindAdjustment, 10, -3},
		{KindAdjustment, 10, 7},
	}

	for _, c := range cases {
		after, ok := c.kind.Apply(c.current, c.quantity)
		if !ok {
			t.Fatalf("%s.Apply(%d, %d) unexpectedly rejected", c.kind, c.current, c.quantity)
		}
		restored := after + c.kind.ReversalDelta(c.quantity)
		if restored != c.current {
			t.Errorf("%s: apply then reverse = %d, want %d", c.kind, restored, c.current)
		}
	}
}

func TestKindDirection(t *testing.T) {
	if !KindPurchase.IsInbound() || !KindReceived.IsInbound() {
		t.Error("purchase and received must be inbound")
	}
	if !KindSale.IsOutbound() || !KindIssued.IsOutbound() {
		t.Error("sale and issued must be outbound")
	}
	if KindAdjustment.IsInbound() || KindAdjustment.IsOutbound() {
		t.Error("adjustment has no fixed direction")
	}
}
