package party

import (
	"context"
	"strings"
	"testing"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
)

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memPartyRepo struct {
	items map[string]*Party // keyed by lower(name)
}

func newMemPartyRepo() *memPartyRepo {
	return &memPartyRepo{items: make(map[string]*Party)}
}

func (r *memPartyRepo) Create(_ context.Context, p *Party) error {
	cp := *p
	r.items[strings.ToLower(p.Name)] = &cp
	return nil
}

func (r *memPartyRepo) GetByName(_ context.Context, name string) (*Party, error) {
	p, ok := r.items[strings.ToLower(name)]
	if !ok {
		return nil, apperror.NewNotFound("party", name)
	}
	cp := *p
	return &cp, nil
}

func (r *memPartyRepo) List(_ context.Context, filter Filter) ([]Party, error) {
	var out []Party
	for _, p := range r.items {
		if !filter.IncludeInactive && !p.Active {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memPartyRepo) Update(_ context.Context, p *Party) error {
	for key, existing := range r.items {
		if existing.ID == p.ID {
			delete(r.items, key)
			cp := *p
			r.items[strings.ToLower(p.Name)] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("party", p.Name)
}

func (r *memPartyRepo) SetActive(_ context.Context, name string, active bool) error {
	r.items[strings.ToLower(name)].Active = active
	return nil
}

type memSupplierFields struct {
	suppliers map[string]string // product -> supplier
}

func (m *memSupplierFields) RenameSupplier(_ context.Context, oldName, newName string) error {
	for product, supplier := range m.suppliers {
		if strings.EqualFold(supplier, oldName) {
			m.suppliers[product] = newName
		}
	}
	return nil
}

type memMovementLog struct {
	parties []string
}

func (m *memMovementLog) RenameParty(_ context.Context, oldName, newName string) error {
	for i, p := range m.parties {
		if strings.EqualFold(p, oldName) {
			m.parties[i] = newName
		}
	}
	return nil
}

type memVersionStore struct {
	bumps map[string]int64
}

func (s *memVersionStore) Bump(_ context.Context, family string) error {
	s.bumps[family]++
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memPartyRepo
	products  *memSupplierFields
	movements *memMovementLog
	versions  *memVersionStore
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemPartyRepo(),
		products:  &memSupplierFields{suppliers: make(map[string]string)},
		movements: &memMovementLog{},
		versions:  &memVersionStore{bumps: make(map[string]int64)},
	}
	f.svc = NewService(f.repo, f.products, f.movements, f.versions, nil)
	f.ctx = tenant.WithTxManager(context.Background(), passthroughTxManager{})
	return f
}

func TestMergeType(t *testing.T) {
	tests := []struct {
		existing Type
		incoming Type
		want     Type
	}{
		{TypeOther, TypeSupplier, TypeSupplier},
		{TypeOther, TypeCustomer, TypeCustomer},
		{TypeOther, TypeOther, TypeOther},
		{TypeSupplier, TypeOther, TypeSupplier},
		{TypeCustomer, TypeOther, TypeCustomer},
		{TypeSupplier, TypeCustomer, TypeSupplier},
		{TypeCustomer, TypeSupplier, TypeCustomer},
	}

	for _, tt := range tests {
		if got := MergeType(tt.existing, tt.incoming); got != tt.want {
			t.Errorf("MergeType(%s, %s) = %s, want %s", tt.existing, tt.incoming, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		want  Type
	}{
		{"Supplier", TypeSupplier},
		{"supplier", TypeSupplier},
		{"CUSTOMER", TypeCustomer},
		{"Other", TypeOther},
		{"", TypeOther},
		{"vendor", TypeOther},
	}

	for _, tt := range tests {
		if got := ParseType(tt.input); got != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestUpsertInsertsAndMerges(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Upsert(f.ctx, "Acme", "Other"); err != nil {
		t.Fatalf("first upsert error: %v", err)
	}
	// Supplier dominates Other.
	if err := f.svc.Upsert(f.ctx, "acme", "Supplier"); err != nil {
		t.Fatalf("second upsert error: %v", err)
	}

	p, err := f.svc.Get(f.ctx, "ACME")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.Type != TypeSupplier {
		t.Errorf("type = %s, want Supplier", p.Type)
	}
	if len(f.repo.items) != 1 {
		t.Errorf("parties = %d, want 1 (case-insensitive match)", len(f.repo.items))
	}

	// Supplier vs Customer keeps the existing value.
	if err := f.svc.Upsert(f.ctx, "Acme", "Customer"); err != nil {
		t.Fatalf("third upsert error: %v", err)
	}
	p, _ = f.svc.Get(f.ctx, "Acme")
	if p.Type != TypeSupplier {
		t.Errorf("type = %s, conflicting upsert must keep existing", p.Type)
	}
}

func TestUpsertReactivates(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := f.svc.Deactivate(f.ctx, "Acme"); err != nil {
		t.Fatalf("deactivate error: %v", err)
	}
	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("re-upsert error: %v", err)
	}

	p, _ := f.svc.Get(f.ctx, "Acme")
	if !p.Active {
		t.Error("upsert must reactivate an inactive party")
	}
}

func TestUpsertIdempotent(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	before := f.versions.bumps["parties"]

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("repeat upsert error: %v", err)
	}
	if f.versions.bumps["parties"] != before {
		t.Error("no-change upsert must not bump the version counter")
	}
}

func TestRenameCascades(t *testing.T) {
	f := newFixture(t)
	f.products.suppliers["Scanner"] = "Acme"
	f.movements.parties = []string{"Acme", "Someone Else"}

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := f.svc.Rename(f.ctx, "Acme", "Acme Corp"); err != nil {
		t.Fatalf("Rename() error: %v", err)
	}

	if f.products.suppliers["Scanner"] != "Acme Corp" {
		t.Error("rename must cascade to product supplier fields")
	}
	if f.movements.parties[0] != "Acme Corp" {
		t.Error("rename must cascade to movement party fields")
	}
	if f.movements.parties[1] != "Someone Else" {
		t.Error("unrelated movement parties must be untouched")
	}
	if _, err := f.svc.Get(f.ctx, "Acme Corp"); err != nil {
		t.Errorf("party must be retrievable under the new name: %v", err)
	}
}

func TestRenameCollision(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := f.svc.Upsert(f.ctx, "Globex", "Customer"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}

	err := f.svc.Rename(f.ctx, "Acme", "globex")
	if !apperror.IsDuplicate(err) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestDeactivateKeepsHistoricalNames(t *testing.T) {
	f := newFixture(t)
	f.movements.parties = []string{"Acme"}

	if err := f.svc.Upsert(f.ctx, "Acme", "Supplier"); err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if err := f.svc.Deactivate(f.ctx, "Acme"); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	if f.movements.parties[0] != "Acme" {
		t.Error("deactivation must not touch movement rows")
	}

	parties, err := f.svc.List(f.ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(parties) != 0 {
		t.Errorf("active list = %d entries, want 0", len(parties))
	}
}
