package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		PasswordMinLength: 8,
	}
}

// Service provides authentication and account management.
type Service struct {
	userRepo   UserRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates a new auth service.
// In Database-per-Tenant, TxManager is obtained from context.
func NewService(userRepo UserRepository, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		userRepo:   userRepo,
		jwtService: jwtService,
		config:     config,
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

func (s *Service) requireTenantID(ctx context.Context) (string, error) {
	tenantID := tenant.GetTenantID(ctx)
	if tenantID == "" {
		// Should be prevented by TenantDB middleware; treat as bad request if it happens.
		return "", apperror.NewValidation("tenant is required").
			WithDetail("header", "X-Tenant-ID")
	}
	return tenantID, nil
}

// Register creates a new account. The very first account in a tenant
// database becomes an approved owner; later sign-ups start as pending
// viewers awaiting approval.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if _, err := s.requireTenantID(ctx); err != nil {
		return nil, err
	}

	if req.Username == "" {
		return nil, apperror.NewValidation("username is required").WithDetail("field", "username")
	}
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, err
	}

	user := NewUser(req.Username, string(passwordHash))
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.userRepo.GetByUsername(ctx, req.Username)
		switch {
		case err == nil:
			return apperror.NewDuplicate("user", existing.Username)
		case !apperror.IsNotFound(err):
			return err
		}

		count, err := s.userRepo.Count(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if count == 0 {
			user.Role = appctx.RoleOwner
			user.Status = StatusApproved
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role)

	return user, nil
}

// Login authenticates an account and returns an access token.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, *User, error) {
	tenantID, err := s.requireTenantID(ctx)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, creds.Username)
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := user.CanLogin(); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(
		user.ID.String(), tenantID, user.Username, user.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"username", user.Username)

	return &Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, user, nil
}

// Approve activates a pending account.
func (s *Service) Approve(ctx context.Context, userID id.ID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status == StatusApproved {
		return nil
	}
	if err := s.userRepo.UpdateStatus(ctx, userID, StatusApproved); err != nil {
		return fmt.Errorf("approve user: %w", err)
	}

	logger.Info(ctx, "user approved", "user_id", userID, "username", user.Username)
	return nil
}

// SetRole changes an account's role. An owner cannot demote themself,
// so a tenant always keeps at least one owner.
func (s *Service) SetRole(ctx context.Context, userID id.ID, role string) error {
	if !ValidRole(role) {
		return apperror.NewValidation("unknown role").WithDetail("role", role)
	}

	if current := appctx.GetUser(ctx); current != nil && current.UserID == userID.String() {
		return apperror.NewForbidden("cannot change own role")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	logger.Info(ctx, "role changed",
		"user_id", userID,
		"username", user.Username,
		"role", role)
	return nil
}

// DeleteUser removes an account. Deleting yourself or the last owner is
// rejected, so a tenant never locks itself out.
func (s *Service) DeleteUser(ctx context.Context, userID id.ID) error {
	if current := appctx.GetUser(ctx); current != nil && current.UserID == userID.String() {
		return apperror.NewForbidden("cannot delete own account")
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return err
	}

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if user.Role == appctx.RoleOwner {
			users, err := s.userRepo.List(ctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			owners := 0
			for i := range users {
				if users[i].Role == appctx.RoleOwner {
					owners++
				}
			}
			if owners <= 1 {
				return apperror.NewForbidden("cannot delete the last owner")
			}
		}

		if err := s.userRepo.Delete(ctx, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		logger.Info(ctx, "user deleted", "user_id", userID, "username", user.Username)
		return nil
	})
}

// GetUser retrieves an account by id.
func (s *Service) GetUser(ctx context.Context, userID id.ID) (*User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ListUsers lists all accounts in the tenant.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.userRepo.List(ctx)
}
