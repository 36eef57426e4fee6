package product

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
)

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memProductRepo struct {
	items map[string]*Product // keyed by lower(name)
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{items: make(map[string]*Product)}
}

func (r *memProductRepo) Create(_ context.Context, p *Product) error {
	cp := *p
	r.items[strings.ToLower(p.Name)] = &cp
	return nil
}

func (r *memProductRepo) GetByName(_ context.Context, name string) (*Product, error) {
	p, ok := r.items[strings.ToLower(name)]
	if !ok {
		return nil, apperror.NewNotFound("product", name)
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) List(_ context.Context, filter Filter) ([]Product, error) {
	var out []Product
	for _, p := range r.items {
		if !filter.IncludeInactive && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memProductRepo) Update(_ context.Context, p *Product) error {
	for key, existing := range r.items {
		if existing.ID == p.ID {
			delete(r.items, key)
			cp := *p
			cp.Version = existing.Version + 1
			r.items[strings.ToLower(p.Name)] = &cp
			return nil
		}
	}
	return apperror.NewNotFound("product", p.Name)
}

func (r *memProductRepo) SetActive(_ context.Context, name string, active bool) error {
	r.items[strings.ToLower(name)].Active = active
	return nil
}

func (r *memProductRepo) UpdateStock(_ context.Context, name string, stock int64) error {
	r.items[strings.ToLower(name)].CurrentStock = stock
	return nil
}

func (r *memProductRepo) SetSupplier(_ context.Context, name, supplier string) error {
	r.items[strings.ToLower(name)].Supplier = supplier
	return nil
}

func (r *memProductRepo) RenameSupplier(_ context.Context, oldName, newName string) error {
	for _, p := range r.items {
		if strings.EqualFold(p.Supplier, oldName) {
			p.Supplier = newName
		}
	}
	return nil
}

type memMovementLog struct {
	byProduct map[string]int64 // lower(name) -> movement count
	renames   []string
}

func newMemMovementLog() *memMovementLog {
	return &memMovementLog{byProduct: make(map[string]int64)}
}

func (l *memMovementLog) PurgeByProduct(_ context.Context, productName string) (int64, error) {
	key := strings.ToLower(productName)
	n := l.byProduct[key]
	delete(l.byProduct, key)
	return n, nil
}

func (l *memMovementLog) RenameProduct(_ context.Context, oldName, newName string) error {
	oldKey, newKey := strings.ToLower(oldName), strings.ToLower(newName)
	l.byProduct[newKey] += l.byProduct[oldKey]
	delete(l.byProduct, oldKey)
	l.renames = append(l.renames, oldName+"->"+newName)
	return nil
}

type memStockInit struct {
	repo  *memProductRepo
	log   *memMovementLog
	calls int
}

func (s *memStockInit) InitializeStock(_ context.Context, productName string, quantity int64, _ string) error {
	s.calls++
	s.repo.items[strings.ToLower(productName)].CurrentStock = quantity
	s.log.byProduct[strings.ToLower(productName)]++
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

type fixture struct {
	svc       *Service
	repo      *memProductRepo
	movements *memMovementLog
	stockInit *memStockInit
	versions  *memVersionStore
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemProductRepo(),
		movements: newMemMovementLog(),
		versions:  newMemVersionStore(),
	}
	f.stockInit = &memStockInit{repo: f.repo, log: f.movements}
	f.svc = NewService(f.repo, f.movements, f.versions, nil)
	f.svc.SetStockInitializer(f.stockInit)
	f.ctx = tenant.WithTxManager(context.Background(), passthroughTxManager{})
	return f
}

func validInput(name string) CreateInput {
	return CreateInput{
		Name:      name,
		Category:  "Office",
		Brand:     "Generic",
		CostPrice: decimal.NewFromInt(50),
		SalePrice: decimal.NewFromInt(80),
	}
}

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(f.ctx, validInput("Scanner"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.CurrentStock != 0 {
		t.Errorf("stock = %d, want 0 without initial stock", p.CurrentStock)
	}
	if !p.Active {
		t.Error("new product must be active")
	}
	if f.stockInit.calls != 0 {
		t.Error("no initial stock movement expected")
	}
	if f.versions.bumps["products"] == 0 {
		t.Error("products version must be bumped")
	}
}

func TestCreateProductWithInitialStock(t *testing.T) {
	f := newFixture(t)

	in := validInput("Scanner")
	in.InitialStock = 10
	p, err := f.svc.Create(f.ctx, in)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if f.stockInit.calls != 1 {
		t.Errorf("initializer calls = %d, want 1", f.stockInit.calls)
	}
	if p.CurrentStock != 10 {
		t.Errorf("stock = %d, want 10", p.CurrentStock)
	}
}

func TestCreateDuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.ctx, validInput("Printer")); err != nil {
		t.Fatalf("first create error: %v", err)
	}

	_, err := f.svc.Create(f.ctx, validInput("printer"))
	if !apperror.IsDuplicate(err) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestCreateConflictsWithInactiveProduct(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.ctx, validInput("Printer")); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := f.svc.Delete(f.ctx, "Printer"); err != nil {
		t.Fatalf("delete error: %v", err)
	}

	_, err := f.svc.Create(f.ctx, validInput("Printer"))
	if !apperror.IsDuplicate(err) {
		t.Fatalf("inactive product must still block the name, got %v", err)
	}
	appErr, _ := apperror.AsAppError(err)
	if appErr.Details["inactive"] != true {
		t.Error("duplicate error should flag the existing product as inactive")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"missing name", CreateInput{Category: "c", Brand: "b"}},
		{"missing category", CreateInput{Name: "n", Brand: "b"}},
		{"missing brand", CreateInput{Name: "n", Category: "c"}},
		{"negative initial stock", func() CreateInput {
			in := validInput("n")
			in.InitialStock = -1
			return in
		}()},
		{"negative cost", func() CreateInput {
			in := validInput("n")
			in.CostPrice = decimal.NewFromInt(-1)
			return in
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, tt.input)
			appErr, ok := apperror.AsAppError(err)
			if !ok || appErr.Code != apperror.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateRenameCascades(t *testing.T) {
	f := newFixture(t)

	in := validInput("Scanner A")
	in.InitialStock = 5
	if _, err := f.svc.Create(f.ctx, in); err != nil {
		t.Fatalf("create error: %v", err)
	}

	updated, err := f.svc.Update(f.ctx, "Scanner A", UpdateInput{
		Name:      "Scanner B",
		Category:  "Office",
		Brand:     "Generic",
		CostPrice: decimal.NewFromInt(55),
		SalePrice: decimal.NewFromInt(85),
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "Scanner B" {
		t.Errorf("name = %q, want Scanner B", updated.Name)
	}

	if f.movements.byProduct["scanner a"] != 0 {
		t.Error("no movements may remain under the old name")
	}
	if f.movements.byProduct["scanner b"] != 1 {
		t.Error("movements must follow the product to the new name")
	}
	if f.versions.bumps["movements"] == 0 {
		t.Error("movements version must be bumped on rename")
	}
}

func TestUpdateRenameCollision(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.ctx, validInput("Scanner")); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if _, err := f.svc.Create(f.ctx, validInput("Printer")); err != nil {
		t.Fatalf("create error: %v", err)
	}

	_, err := f.svc.Update(f.ctx, "Scanner", UpdateInput{
		Name:     "PRINTER",
		Category: "Office",
		Brand:    "Generic",
	})
	if !apperror.IsDuplicate(err) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestUpdateCaseOnlyRename(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.ctx, validInput("scanner")); err != nil {
		t.Fatalf("create error: %v", err)
	}

	// Changing only the letter case is not a rename against itself.
	updated, err := f.svc.Update(f.ctx, "scanner", UpdateInput{
		Name:     "Scanner",
		Category: "Office",
		Brand:    "Generic",
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "Scanner" {
		t.Errorf("name = %q, want Scanner", updated.Name)
	}
}

func TestDeletePurgesMovementsAndResetsStock(t *testing.T) {
	f := newFixture(t)

	in := validInput("Scanner")
	in.InitialStock = 10
	if _, err := f.svc.Create(f.ctx, in); err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := f.svc.Delete(f.ctx, "Scanner"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	p, err := f.svc.Get(f.ctx, "Scanner")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.Active {
		t.Error("deleted product must be inactive")
	}
	if p.CurrentStock != 0 {
		t.Errorf("stock = %d, want 0 after purge", p.CurrentStock)
	}
	if f.movements.byProduct["scanner"] != 0 {
		t.Error("movements must be purged on delete")
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(f.ctx, validInput("Scanner")); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := f.svc.Delete(f.ctx, "Scanner"); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if err := f.svc.Restore(f.ctx, "Scanner"); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	exists, active, err := f.svc.FindByName(f.ctx, "scanner")
	if err != nil {
		t.Fatalf("FindByName() error: %v", err)
	}
	if !exists || !active {
		t.Errorf("exists=%v active=%v, want true/true after restore", exists, active)
	}
}

func TestFindByNameMissing(t *testing.T) {
	f := newFixture(t)

	exists, active, err := f.svc.FindByName(f.ctx, "Ghost")
	if err != nil {
		t.Fatalf("FindByName() error: %v", err)
	}
	if exists || active {
		t.Errorf("exists=%v active=%v, want false/false", exists, active)
	}
}
