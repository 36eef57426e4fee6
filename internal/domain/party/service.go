package party

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

const (
	familyProducts  = "products"
	familyMovements = "movements"
	familyParties   = "parties"
)

// Service provides business logic for the party directory.
type Service struct {
	repo      Repository
	products  SupplierFields
	movements MovementLog
	versions  VersionStore
	audit     Auditor
	txManager tx.Manager
}

// NewService creates a party service. audit may be nil.
// In Database-per-Tenant, TxManager is obtained from context.
func NewService(
	repo Repository,
	products SupplierFields,
	movements MovementLog,
	versions VersionStore,
	audit Auditor,
) *Service {
	return &Service{
		repo:      repo,
		products:  products,
		movements: movements,
		versions:  versions,
		audit:     audit,
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Upsert inserts a party or merges its type with an existing entry.
// Idempotent: repeating the same call changes nothing. An inactive party
// hit by an upsert is reactivated.
func (s *Service) Upsert(ctx context.Context, name, rawType string) error {
	in := UpsertInput{Name: name, Type: rawType}
	if err := in.Validate(ctx); err != nil {
		return err
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	incoming := ParseType(rawType)
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByName(ctx, name)
		switch {
		case err == nil:
			merged := MergeType(existing.Type, incoming)
			if merged == existing.Type && existing.Active {
				return nil
			}
			existing.Type = merged
			existing.Active = true
			if err := s.repo.Update(ctx, existing); err != nil {
				return apperror.NewTransaction(err)
			}
		case apperror.IsNotFound(err):
			p := &Party{
				ID:        id.New(),
				Name:      strings.TrimSpace(name),
				Type:      incoming,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.repo.Create(ctx, p); err != nil {
				return apperror.NewTransaction(err)
			}
		default:
			return err
		}

		if err := s.versions.Bump(ctx, familyParties); err != nil {
			return apperror.NewTransaction(err)
		}
		return nil
	})
}

// Get returns a party by name, active or not.
func (s *Service) Get(ctx context.Context, name string) (*Party, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns parties matching the filter. Read failures degrade to an
// empty result with a warning.
func (s *Service) List(ctx context.Context, filter Filter) ([]Party, error) {
	parties, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.Warn(ctx, "party read failed, returning empty result", "error", err)
		return []Party{}, nil
	}
	if parties == nil {
		parties = []Party{}
	}
	return parties, nil
}

// Rename changes a party's name and cascades it to product supplier
// fields and historical movement rows, all in one transaction.
func (s *Service) Rename(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return apperror.NewValidation("party name is required").WithDetail("field", "name")
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, oldName)
		if err != nil {
			return err
		}

		if !strings.EqualFold(p.Name, newName) {
			other, err := s.repo.GetByName(ctx, newName)
			switch {
			case err == nil && other.ID != p.ID:
				return apperror.NewDuplicate("party", other.Name)
			case err != nil && !apperror.IsNotFound(err):
				return err
			}
		}

		previousName := p.Name
		p.Name = newName
		if err := s.repo.Update(ctx, p); err != nil {
			return apperror.NewTransaction(err)
		}

		if err := s.products.RenameSupplier(ctx, previousName, newName); err != nil {
			return apperror.NewTransaction(err)
		}
		if err := s.movements.RenameParty(ctx, previousName, newName); err != nil {
			return apperror.NewTransaction(err)
		}

		for _, family := range []string{familyParties, familyProducts, familyMovements} {
			if err := s.versions.Bump(ctx, family); err != nil {
				return apperror.NewTransaction(err)
			}
		}

		s.auditParty(ctx, newName, "update", map[string]any{"renamedFrom": previousName})
		return nil
	})
}

// Deactivate soft-deletes a party. Movements keep the historical name.
func (s *Service) Deactivate(ctx context.Context, name string) error {
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
		if err := s.versions.Bump(ctx, familyParties); err != nil {
			return apperror.NewTransaction(err)
		}

		s.auditParty(ctx, p.Name, "delete", nil)
		return nil
	})
}

func (s *Service) auditParty(ctx context.Context, name, action string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, "party", name, action, changes); err != nil {
		logger.Warn(ctx, "audit log failed", "party", name, "error", err)
	}
}
