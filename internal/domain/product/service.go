package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

const (
	familyProducts  = "products"
	familyMovements = "movements"
)

// Service provides business logic for the product registry.
type Service struct {
	repo      Repository
	movements MovementLog
	stockInit StockInitializer
	versions  VersionStore
	audit     Auditor
	txManager tx.Manager
}

// NewService creates a product service. audit may be nil.
// In Database-per-Tenant, TxManager is obtained from context.
func NewService(
	repo Repository,
	movements MovementLog,
	versions VersionStore,
	audit Auditor,
) *Service {
	return &Service{
		repo:      repo,
		movements: movements,
		versions:  versions,
		audit:     audit,
	}
}

// SetStockInitializer wires the ledger-backed initializer. Set during
// assembly; the ledger depends on the registry, so this side of the link
// is attached after both services exist.
func (s *Service) SetStockInitializer(init StockInitializer) {
	s.stockInit = init
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Create inserts a new product with zero stock. A nonzero initial stock
// is recorded as an initial stock movement inside the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	if err := in.Validate(ctx); err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, err
	}

	var created *Product
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByName(ctx, in.Name)
		switch {
		case err == nil:
			dup := apperror.NewDuplicate("product", existing.Name)
			if !existing.Active {
				dup = dup.WithDetail("inactive", true)
			}
			return dup
		case !apperror.IsNotFound(err):
			return err
		}

		now := time.Now().UTC()
		created = &Product{
			ID:           id.New(),
			Name:         strings.TrimSpace(in.Name),
			Category:     strings.TrimSpace(in.Category),
			Brand:        strings.TrimSpace(in.Brand),
			Description:  strings.TrimSpace(in.Description),
			ImageRef:     strings.TrimSpace(in.ImageRef),
			CurrentStock: 0,
			CostPrice:    in.CostPrice,
			SalePrice:    in.SalePrice,
			Supplier:     strings.TrimSpace(in.Supplier),
			Active:       true,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, created); err != nil {
			return apperror.NewTransaction(err)
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}

		// Stock is owned by the ledger: a starting quantity becomes an
		// initial stock movement, never a direct column write.
		if in.InitialStock > 0 {
			if s.stockInit == nil {
				return apperror.NewInternal(errors.New("stock initializer not configured"))
			}
			if err := s.stockInit.InitializeStock(ctx, created.Name, in.InitialStock, in.CostPrice.String()); err != nil {
				return err
			}
			created.CurrentStock = in.InitialStock
		}

		s.auditProduct(ctx, created.Name, "create", map[string]any{
			"category":     created.Category,
			"brand":        created.Brand,
			"initialStock": in.InitialStock,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Get returns a product by name, active or not.
func (s *Service) Get(ctx context.Context, name string) (*Product, error) {
	return s.repo.GetByName(ctx, name)
}

// FindByName reports existence and active flag for conflict detection
// before insert. A missing product is not an error here.
func (s *Service) FindByName(ctx context.Context, name string) (exists, active bool, err error) {
	p, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, p.Active, nil
}

// List returns products matching the filter. Read failures degrade to an
// empty result with a warning.
func (s *Service) List(ctx context.Context, filter Filter) ([]Product, error) {
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.Warn(ctx, "product read failed, returning empty result", "error", err)
		return []Product{}, nil
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// Update rewrites a product's attributes and optionally renames it. A
// rename cascades to all movement rows referencing the old name.
func (s *Service) Update(ctx context.Context, oldName string, in UpdateInput) (*Product, error) {
	if err := in.Validate(ctx); err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, err
	}

	var updated *Product
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, oldName)
		if err != nil {
			return err
		}

		newName := strings.TrimSpace(in.Name)
		renamed := !strings.EqualFold(p.Name, newName)
		if renamed {
			other, err := s.repo.GetByName(ctx, newName)
			switch {
			case err == nil && other.ID != p.ID:
				return apperror.NewDuplicate("product", other.Name)
			case err != nil && !apperror.IsNotFound(err):
				return err
			}
		}

		previousName := p.Name
		p.Name = newName
		p.Category = strings.TrimSpace(in.Category)
		p.Brand = strings.TrimSpace(in.Brand)
		p.Description = strings.TrimSpace(in.Description)
		p.ImageRef = strings.TrimSpace(in.ImageRef)
		p.CostPrice = in.CostPrice
		p.SalePrice = in.SalePrice
		p.Supplier = strings.TrimSpace(in.Supplier)

		if err := s.repo.Update(ctx, p); err != nil {
			return apperror.NewTransaction(err)
		}

		if renamed {
			if err := s.movements.RenameProduct(ctx, previousName, p.Name); err != nil {
				return apperror.NewTransaction(err)
			}
			if err := s.versions.Bump(ctx, familyMovements); err != nil {
				return apperror.NewTransaction(err)
			}
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}

		changes := map[string]any{"category": p.Category, "brand": p.Brand}
		if renamed {
			changes["renamedFrom"] = previousName
		}
		s.auditProduct(ctx, p.Name, "update", changes)

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete soft-deletes a product and purges its movement history. The
// purge is destructive and audit-losing, so stock is reset to zero in the
// same transaction to keep the ledger invariant intact.
func (s *Service) Delete(ctx context.Context, name string) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, name)
		if err != nil {
			return err
		}

		if err := s.repo.SetActive(ctx, p.Name, false); err != nil {
			return apperror.NewTransaction(err)
		}

		purged, err := s.movements.PurgeByProduct(ctx, p.Name)
		if err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.repo.UpdateStock(ctx, p.Name, 0); err != nil {
			return apperror.NewTransaction(err)
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.versions.Bump(ctx, familyMovements); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditProduct(ctx, p.Name, "delete", map[string]any{"purgedMovements": purged})
		return nil
	})
}

// Restore reactivates a soft-deleted product. Purged movements stay gone.
func (s *Service) Restore(ctx context.Context, name string) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, name)
		if err != nil {
			return err
		}

		if err := s.repo.SetActive(ctx, p.Name, true); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditProduct(ctx, p.Name, "update", map[string]any{"restored": true})
		return nil
	})
}

func (s *Service) auditProduct(ctx context.Context, name, action string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, "product", name, action, changes); err != nil {
		logger.Warn(ctx, "audit log failed", "product", name, "error", err)
	}
}
