package ledger

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// Party types used when movements reference a party. The party registry
// owns the merge semantics.
const (
	partyTypeSupplier = "Supplier"
	partyTypeCustomer = "Customer"
)

// Version counter families bumped on writes.
const (
	familyProducts  = "products"
	familyMovements = "movements"
	familyParties   = "parties"
)

// Service implements the movement ledger. Every write runs in a single
// transaction covering the movement row, the product's stock and the
// version counter bumps.
type Service struct {
	repo      Repository
	products  ProductStore
	parties   PartyDirectory
	versions  VersionStore
	audit     Auditor
	txManager tx.Manager
}

// NewService creates a ledger service. audit may be nil.
// In Database-per-Tenant, TxManager is obtained from context.
func NewService(
	repo Repository,
	products ProductStore,
	parties PartyDirectory,
	versions VersionStore,
	audit Auditor,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		parties:  parties,
		versions: versions,
		audit:    audit,
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Record writes a movement and applies its stock effect atomically.
// INITIAL STOCK input is routed through the upsert path so the
// sole-movement rule is enforced in one place.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Movement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	kind, _ := ParseKind(in.Kind)
	if kind == KindInitialStock {
		return s.UpsertInitialStock(ctx, InitialStockInput{
			ProductName: in.ProductName,
			Quantity:    in.Quantity,
			Price:       in.Price,
			Party:       in.Party,
			Notes:       in.Notes,
			Date:        in.Date,
		})
	}

	price, err := NormalizePrice(in.Price)
	if err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, err
	}

	var movement *Movement
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetForUpdate(ctx, in.ProductName)
		if err != nil {
			return err
		}
		if !p.Active {
			return apperror.NewInactiveProduct(p.Name)
		}

		newStock, ok := kind.Apply(p.CurrentStock, in.Quantity)
		if !ok {
			requested := in.Quantity
			if kind == KindAdjustment {
				requested = -in.Quantity
			}
			return apperror.NewInsufficientStock(p.Name, requested, p.CurrentStock)
		}

		category := strings.TrimSpace(in.Category)
		if category == "" {
			category = p.Category
		}

		movement = &Movement{
			ID:              id.New(),
			ProductName:     p.Name,
			ProductCategory: category,
			Kind:            kind,
			Quantity:        in.Quantity,
			Price:           price,
			Party:           strings.TrimSpace(in.Party),
			Notes:           strings.TrimSpace(in.Notes),
			MovementDate:    date,
			CreatedAt:       time.Now().UTC(),
		}

		if err := s.repo.Insert(ctx, movement); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.products.UpdateStock(ctx, p.Name, newStock); err != nil {
			return apperror.NewTransaction(err)
		}

		if err := s.syncParty(ctx, kind, p.Name, movement.Party); err != nil {
			return err
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.versions.Bump(ctx, familyMovements); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditMovement(ctx, movement, "record")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return movement, nil
}

// syncParty propagates the movement's party to the registries. Purchases
// set the product's denormalized supplier and register the party as a
// supplier; sales register it as a customer.
func (s *Service) syncParty(ctx context.Context, kind Kind, productName, party string) error {
	if party == "" {
		return nil
	}

	partyType := ""
	switch {
	case kind == KindPurchase:
		if err := s.products.SetSupplier(ctx, productName, party); err != nil {
			return apperror.NewTransaction(err)
		}
		partyType = partyTypeSupplier
	case kind == KindReceived:
		partyType = partyTypeSupplier
	case kind.IsOutbound():
		partyType = partyTypeCustomer
	}

	if partyType == "" || s.parties == nil {
		return nil
	}

	if err := s.parties.Upsert(ctx, party, partyType); err != nil {
		return apperror.NewTransaction(err)
	}
	if err := s.versions.Bump(ctx, familyParties); err != nil {
		return apperror.NewTransaction(err)
	}
	return nil
}

// UpsertInitialStock inserts or updates the INITIAL STOCK movement and
// sets the product's stock to the given quantity, not additively. The
// movement must be, and remain, the product's sole movement.
func (s *Service) UpsertInitialStock(ctx context.Context, in InitialStockInput) (*Movement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	price, err := NormalizePrice(in.Price)
	if err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, err
	}

	var movement *Movement
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.products.GetForUpdate(ctx, in.ProductName)
		if err != nil {
			return err
		}
		if !p.Active {
			return apperror.NewInactiveProduct(p.Name)
		}

		count, err := s.repo.CountByProduct(ctx, p.Name)
		if err != nil {
			return apperror.NewTransaction(err)
		}

		if in.MovementID != nil {
			existing, err := s.repo.GetByID(ctx, *in.MovementID)
			if err != nil {
				return err
			}
			if !strings.EqualFold(existing.ProductName, p.Name) {
				return apperror.NewValidation("movement belongs to a different product").
					WithDetail("movementId", in.MovementID.String())
			}
			if existing.Kind != KindInitialStock || count != 1 {
				return apperror.NewValidation("initial stock can only be updated while it is the product's sole movement").
					WithDetail("movementId", in.MovementID.String())
			}

			existing.Quantity = in.Quantity
			existing.Price = price
			existing.Party = strings.TrimSpace(in.Party)
			existing.Notes = strings.TrimSpace(in.Notes)
			existing.MovementDate = date

			if err := s.repo.Update(ctx, existing); err != nil {
				return apperror.NewTransaction(err)
			}
			movement = existing
		} else {
			if count > 0 {
				return apperror.NewValidation("initial stock must be recorded before any other movement").
					WithDetail("productName", p.Name)
			}

			movement = &Movement{
				ID:              id.New(),
				ProductName:     p.Name,
				ProductCategory: p.Category,
				Kind:            KindInitialStock,
				Quantity:        in.Quantity,
				Price:           price,
				Party:           strings.TrimSpace(in.Party),
				Notes:           strings.TrimSpace(in.Notes),
				MovementDate:    date,
				CreatedAt:       time.Now().UTC(),
			}
			if err := s.repo.Insert(ctx, movement); err != nil {
				return apperror.NewTransaction(err)
			}
		}

		// Initial stock sets the level directly.
		if err := s.products.UpdateStock(ctx, p.Name, in.Quantity); err != nil {
			return apperror.NewTransaction(err)
		}

		if movement.Party != "" && s.parties != nil {
			if err := s.parties.Upsert(ctx, movement.Party, partyTypeSupplier); err != nil {
				return apperror.NewTransaction(err)
			}
			if err := s.versions.Bump(ctx, familyParties); err != nil {
				return apperror.NewTransaction(err)
			}
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.versions.Bump(ctx, familyMovements); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditMovement(ctx, movement, "record")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return movement, nil
}

// Delete removes a movement and reverses its stock effect atomically.
// A missing movement is a no-op. Deletion is rejected when the reversal
// would drive the product's stock negative.
func (s *Service) Delete(ctx context.Context, movementID id.ID) error {
	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetByID(ctx, movementID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil
			}
			return err
		}

		delta := m.Kind.ReversalDelta(m.Quantity)

		p, err := s.products.GetForUpdate(ctx, m.ProductName)
		switch {
		case err == nil:
			newStock := p.CurrentStock + delta
			if newStock < 0 {
				return apperror.NewInsufficientStock(p.Name, -delta, p.CurrentStock)
			}
			if err := s.products.UpdateStock(ctx, p.Name, newStock); err != nil {
				return apperror.NewTransaction(err)
			}
		case apperror.IsNotFound(err):
			// Product was purged; delete the stray movement row anyway.
		default:
			return err
		}

		if err := s.repo.Delete(ctx, m.ID); err != nil {
			return apperror.NewTransaction(err)
		}

		if err := s.versions.Bump(ctx, familyProducts); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.versions.Bump(ctx, familyMovements); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditMovement(ctx, m, "delete")
		return nil
	})
}

// List returns movements matching the filter. Read failures degrade to
// an empty result with a warning so callers can treat "no data" as a
// legitimate state.
func (s *Service) List(ctx context.Context, filter Filter) ([]Movement, error) {
	movements, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.Warn(ctx, "movement read failed, returning empty result", "error", err)
		return []Movement{}, nil
	}
	if movements == nil {
		movements = []Movement{}
	}
	return movements, nil
}

// Get returns a single movement by id.
func (s *Service) Get(ctx context.Context, movementID id.ID) (*Movement, error) {
	return s.repo.GetByID(ctx, movementID)
}

// LatestPurchaseParty returns the supplier of the most recent purchase
// for a product, or empty string when the product has none.
func (s *Service) LatestPurchaseParty(ctx context.Context, productName string) (string, error) {
	return s.repo.LatestPurchaseParty(ctx, productName)
}

// Summary aggregates movement counts and quantities per kind over the
// last days window. Degrades to empty on read failure.
func (s *Service) Summary(ctx context.Context, days int) ([]KindTotal, error) {
	totals, err := s.repo.Summary(ctx, days)
	if err != nil {
		logger.Warn(ctx, "movement summary read failed, returning empty result", "error", err)
		return []KindTotal{}, nil
	}
	if totals == nil {
		totals = []KindTotal{}
	}
	return totals, nil
}

// InitializeStock records a starting quantity for a freshly created
// product. Meant to be called inside the product create transaction.
func (s *Service) InitializeStock(ctx context.Context, productName string, quantity int64, costPrice string) error {
	if quantity == 0 {
		return nil
	}
	_, err := s.UpsertInitialStock(ctx, InitialStockInput{
		ProductName: productName,
		Quantity:    quantity,
		Price:       costPrice,
	})
	return err
}

func (s *Service) auditMovement(ctx context.Context, m *Movement, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogChange(ctx, "movement", m.ID.String(), action, map[string]any{
		"productName": m.ProductName,
		"kind":        string(m.Kind),
		"quantity":    m.Quantity,
		"date":        m.MovementDate,
	})
	if err != nil {
		logger.Warn(ctx, "audit log failed", "movement_id", m.ID, "error", err)
	}
}
