package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

// --- Test doubles ---

// passthroughTxManager runs fn directly; the in-memory stores below are
// already atomic from the test's point of view.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memMovementRepo struct {
	items map[id.ID]*Movement
	order []id.ID
	fail  bool
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{items: make(map[id.ID]*Movement)}
}

func (r *memMovementRepo) Insert(_ context.Context, m *Movement) error {
	cp := *m
	r.items[m.ID] = &cp
	r.order = append(r.order, m.ID)
	return nil
}

func (r *memMovementRepo) Update(_ context.Context, m *Movement) error {
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *memMovementRepo) GetByID(_ context.Context, movementID id.ID) (*Movement, error) {
	m, ok := r.items[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID.String())
	}
	cp := *m
	return &cp, nil
}

func (r *memMovementRepo) Delete(_ context.Context, movementID id.ID) error {
	delete(r.items, movementID)
	return nil
}

func (r *memMovementRepo) List(_ context.Context, filter Filter) ([]Movement, error) {
	if r.fail {
		return nil, apperror.NewInternal(errors.New("storage unavailable"))
	}
	var out []Movement
	for _, mid := range r.order {
		m, ok := r.items[mid]
		if !ok {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if filter.ProductName != "" && !strings.EqualFold(m.ProductName, filter.ProductName) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *memMovementRepo) CountByProduct(_ context.Context, productName string) (int64, error) {
	var n int64
	for _, m := range r.items {
		if strings.EqualFold(m.ProductName, productName) {
			n++
		}
	}
	return n, nil
}

func (r *memMovementRepo) PurgeByProduct(_ context.Context, productName string) (int64, error) {
	var n int64
	for mid, m := range r.items {
		if strings.EqualFold(m.ProductName, productName) {
			delete(r.items, mid)
			n++
		}
	}
	return n, nil
}

func (r *memMovementRepo) RenameProduct(_ context.Context, oldName, newName string) error {
	for _, m := range r.items {
		if strings.EqualFold(m.ProductName, oldName) {
			m.ProductName = newName
		}
	}
	return nil
}

func (r *memMovementRepo) RenameParty(_ context.Context, oldName, newName string) error {
	for _, m := range r.items {
		if strings.EqualFold(m.Party, oldName) {
			m.Party = newName
		}
	}
	return nil
}

func (r *memMovementRepo) LatestPurchaseParty(_ context.Context, productName string) (string, error) {
	var purchases []*Movement
	for _, m := range r.items {
		if strings.EqualFold(m.ProductName, productName) && m.Kind == KindPurchase {
			purchases = append(purchases, m)
		}
	}
	if len(purchases) == 0 {
		return "", nil
	}
	sort.Slice(purchases, func(i, j int) bool {
		if purchases[i].MovementDate != purchases[j].MovementDate {
			return purchases[i].MovementDate < purchases[j].MovementDate
		}
		return purchases[i].ID.String() < purchases[j].ID.String()
	})
	return purchases[len(purchases)-1].Party, nil
}

func (r *memMovementRepo) Summary(_ context.Context, _ int) ([]KindTotal, error) {
	if r.fail {
		return nil, apperror.NewInternal(errors.New("summary unavailable"))
	}
	return nil, nil
}

type memProductStore struct {
	products map[string]*ProductState // keyed by lower(name)
}

func newMemProductStore(products ...ProductState) *memProductStore {
	s := &memProductStore{products: make(map[string]*ProductState)}
	for _, p := range products {
		cp := p
		s.products[strings.ToLower(p.Name)] = &cp
	}
	return s
}

func (s *memProductStore) GetForUpdate(_ context.Context, name string) (*ProductState, error) {
	p, ok := s.products[strings.ToLower(name)]
	if !ok {
		return nil, apperror.NewNotFound("product", name)
	}
	cp := *p
	return &cp, nil
}

func (s *memProductStore) UpdateStock(_ context.Context, name string, stock int64) error {
	s.products[strings.ToLower(name)].CurrentStock = stock
	return nil
}

func (s *memProductStore) SetSupplier(_ context.Context, name, supplier string) error {
	s.products[strings.ToLower(name)].Supplier = supplier
	return nil
}

func (s *memProductStore) stock(name string) int64 {
	return s.products[strings.ToLower(name)].CurrentStock
}

type partyUpsert struct {
	name      string
	partyType string
}

type memPartyDirectory struct {
	upserts []partyUpsert
}

func (d *memPartyDirectory) Upsert(_ context.Context, name, partyType string) error {
	d.upserts = append(d.upserts, partyUpsert{name: name, partyType: partyType})
	return nil
}

type memVersionStore struct {
	bumps map[string]int64
}

func newMemVersionStore() *memVersionStore {
	return &memVersionStore{bumps: make(map[string]int64)}
}

func (s *memVersionStore) Bump(_ context.Context, family string) error {
	s.bumps[family]++
	return nil
}

type ledgerFixture struct {
	svc      *Service
	repo     *memMovementRepo
	products *memProductStore
	parties  *memPartyDirectory
	versions *memVersionStore
	ctx      context.Context
}

func newLedgerFixture(t *testing.T, products ...ProductState) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		repo:     newMemMovementRepo(),
		products: newMemProductStore(products...),
		parties:  &memPartyDirectory{},
		versions: newMemVersionStore(),
	}
	f.svc = NewService(f.repo, f.products, f.parties, f.versions, nil)
	f.ctx = tenant.WithTxManager(context.Background(), passthroughTxManager{})
	return f
}

// --- Tests ---

func TestRecordPurchase(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Category: "Office", Active: true})

	m, err := f.svc.Record(f.ctx, RecordInput{
		ProductName: "Scanner",
		Kind:        "PURCHASE",
		Quantity:    20,
		Price:       "50",
		Party:       "Acme Supplies",
	})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if got := f.products.stock("Scanner"); got != 20 {
		t.Errorf("stock = %d, want 20", got)
	}
	if m.ProductCategory != "Office" {
		t.Errorf("category snapshot = %q, want product's category", m.ProductCategory)
	}
	if f.products.products["scanner"].Supplier != "Acme Supplies" {
		t.Error("purchase should set product supplier")
	}
	if len(f.parties.upserts) != 1 || f.parties.upserts[0].partyType != "Supplier" {
		t.Errorf("party upserts = %+v, want one Supplier", f.parties.upserts)
	}
	if f.versions.bumps["products"] == 0 || f.versions.bumps["movements"] == 0 {
		t.Error("versions must be bumped on record")
	}
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true, CurrentStock: 15})

	_, err := f.svc.Record(f.ctx, RecordInput{
		ProductName: "Scanner",
		Kind:        "SALE",
		Quantity:    100,
		Price:       "80",
	})
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	if got := f.products.stock("Scanner"); got != 15 {
		t.Errorf("stock = %d, want unchanged 15", got)
	}
	if len(f.repo.items) != 0 {
		t.Error("no movement row may exist after a rejected sale")
	}
}

func TestRecordUnknownProduct(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Ghost", Kind: "SALE", Quantity: 1})
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordInactiveProduct(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Old Printer", Active: false, CurrentStock: 3})

	_, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Old Printer", Kind: "SALE", Quantity: 1})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInactiveProduct {
		t.Fatalf("expected inactive product error, got %v", err)
	}
}

func TestRecordNormalizesPriceSentinel(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true, CurrentStock: 10})

	m, err := f.svc.Record(f.ctx, RecordInput{
		ProductName: "Scanner",
		Kind:        "ADJUSTMENT",
		Quantity:    -2,
		Price:       "N/A",
	})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if m.Price.Valid {
		t.Error("N/A price must be stored as null")
	}
	if got := f.products.stock("Scanner"); got != 8 {
		t.Errorf("stock = %d, want 8", got)
	}
}

func TestRecordAdjustmentBelowZero(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true, CurrentStock: 5})

	_, err := f.svc.Record(f.ctx, RecordInput{
		ProductName: "Scanner",
		Kind:        "ADJUSTMENT",
		Quantity:    -6,
		Price:       "N/A",
	})
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := f.products.stock("Scanner"); got != 5 {
		t.Errorf("stock = %d, want unchanged 5", got)
	}
}

func TestUpsertInitialStock(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	first, err := f.svc.UpsertInitialStock(f.ctx, InitialStockInput{ProductName: "Scanner", Quantity: 10})
	if err != nil {
		t.Fatalf("first upsert error: %v", err)
	}
	if got := f.products.stock("Scanner"); got != 10 {
		t.Fatalf("stock = %d, want 10", got)
	}

	// Update in place: still one row, stock set not added.
	second, err := f.svc.UpsertInitialStock(f.ctx, InitialStockInput{
		ProductName: "Scanner",
		Quantity:    15,
		MovementID:  &first.ID,
	})
	if err != nil {
		t.Fatalf("second upsert error: %v", err)
	}
	if second.ID != first.ID {
		t.Error("upsert with movement id must update the same row")
	}
	if len(f.repo.items) != 1 {
		t.Errorf("movement rows = %d, want exactly 1", len(f.repo.items))
	}
	if got := f.products.stock("Scanner"); got != 15 {
		t.Errorf("stock = %d, want 15 (set, not added)", got)
	}
}

func TestUpsertInitialStockAfterOtherMovements(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	if _, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Scanner", Kind: "PURCHASE", Quantity: 5}); err != nil {
		t.Fatalf("seed purchase error: %v", err)
	}

	_, err := f.svc.UpsertInitialStock(f.ctx, InitialStockInput{ProductName: "Scanner", Quantity: 10})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordRoutesInitialStockKind(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	m, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Scanner", Kind: "INITIAL STOCK", Quantity: 7})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if m.Kind != KindInitialStock {
		t.Errorf("kind = %q, want INITIAL STOCK", m.Kind)
	}
	if got := f.products.stock("Scanner"); got != 7 {
		t.Errorf("stock = %d, want 7", got)
	}
}

func TestDeleteReversesMovement(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	m, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Scanner", Kind: "PURCHASE", Quantity: 20})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if err := f.svc.Delete(f.ctx, m.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if got := f.products.stock("Scanner"); got != 0 {
		t.Errorf("stock = %d, want 0 after reversal", got)
	}
	if len(f.repo.items) != 0 {
		t.Error("movement row must be deleted")
	}
}

func TestDeleteRejectedWhenStockWouldGoNegative(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	purchase, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Scanner", Kind: "PURCHASE", Quantity: 20})
	if err != nil {
		t.Fatalf("purchase error: %v", err)
	}
	if _, err := f.svc.Record(f.ctx, RecordInput{ProductName: "Scanner", Kind: "SALE", Quantity: 5}); err != nil {
		t.Fatalf("sale error: %v", err)
	}

	// Reversing the purchase would leave 15-20 = -5.
	err = f.svc.Delete(f.ctx, purchase.ID)
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := f.products.stock("Scanner"); got != 15 {
		t.Errorf("stock = %d, want unchanged 15", got)
	}
	if _, ok := f.repo.items[purchase.ID]; !ok {
		t.Error("rejected deletion must leave the movement row in place")
	}
}

func TestDeleteMissingMovementIsNoOp(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true, CurrentStock: 5})

	if err := f.svc.Delete(f.ctx, id.New()); err != nil {
		t.Fatalf("Delete() of missing movement must be a no-op, got %v", err)
	}
	if got := f.products.stock("Scanner"); got != 5 {
		t.Errorf("stock = %d, want unchanged 5", got)
	}
}

func TestListDegradesOnReadFailure(t *testing.T) {
	f := newLedgerFixture(t)
	f.repo.fail = true

	movements, err := f.svc.List(f.ctx, Filter{})
	if err != nil {
		t.Fatalf("List() must degrade gracefully, got %v", err)
	}
	if movements == nil || len(movements) != 0 {
		t.Errorf("expected empty slice, got %v", movements)
	}
}

// Full walkthrough: stock tracks the signed sum of movements throughout.
func TestLedgerScenario(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Category: "Office", Active: true})
	ctx := f.ctx

	if _, err := f.svc.Record(ctx, RecordInput{ProductName: "Scanner", Kind: "PURCHASE", Quantity: 20, Price: "50"}); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got := f.products.stock("Scanner"); got != 20 {
		t.Fatalf("after purchase stock = %d, want 20", got)
	}

	if _, err := f.svc.Record(ctx, RecordInput{ProductName: "Scanner", Kind: "SALE", Quantity: 5, Price: "80"}); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if got := f.products.stock("Scanner"); got != 15 {
		t.Fatalf("after sale stock = %d, want 15", got)
	}

	if _, err := f.svc.Record(ctx, RecordInput{ProductName: "Scanner", Kind: "SALE", Quantity: 100, Price: "80"}); !apperror.IsInsufficientStock(err) {
		t.Fatalf("oversell must fail with insufficient stock, got %v", err)
	}
	if got := f.products.stock("Scanner"); got != 15 {
		t.Fatalf("after rejected sale stock = %d, want 15", got)
	}
}

func TestLatestPurchaseParty(t *testing.T) {
	f := newLedgerFixture(t, ProductState{Name: "Scanner", Active: true})

	for _, rec := range []struct {
		party string
		date  string
	}{
		{"First Supplier", "2024-01-10"},
		{"Second Supplier", "2024-02-01"},
	} {
		_, err := f.svc.Record(f.ctx, RecordInput{
			ProductName: "Scanner",
			Kind:        "PURCHASE",
			Quantity:    1,
			Party:       rec.party,
			Date:        rec.date,
		})
		if err != nil {
			t.Fatalf("purchase from %s: %v", rec.party, err)
		}
	}

	got, err := f.svc.LatestPurchaseParty(f.ctx, "Scanner")
	if err != nil {
		t.Fatalf("LatestPurchaseParty() error: %v", err)
	}
	if got != "Second Supplier" {
		t.Errorf("latest purchase party = %q, want %q", got, "Second Supplier")
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2024-03-05", "2024-03-05", false},
		{"05/03/2024", "2024-03-05", false},
		{"05.03.2024", "2024-03-05", false},
		{"2024-03-05T10:30:00Z", "2024-03-05", false},
		{"yesterday", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeDate(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDate(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
