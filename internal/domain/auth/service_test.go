package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memUserRepo struct {
	users map[id.ID]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[id.ID]*User)}
}

func (r *memUserRepo) Create(_ context.Context, u *User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, userID id.ID) (*User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user", username)
}

func (r *memUserRepo) List(_ context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *memUserRepo) UpdateStatus(_ context.Context, userID id.ID, status string) error {
	r.users[userID].Status = status
	return nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, userID id.ID, role string) error {
	r.users[userID].Role = role
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, userID id.ID) error {
	if _, ok := r.users[userID]; !ok {
		return apperror.NewNotFound("user", userID.String())
	}
	delete(r.users, userID)
	return nil
}

func newAuthFixture(t *testing.T) (*Service, *memUserRepo, context.Context) {
	t.Helper()
	repo := newMemUserRepo()
	jwtSvc := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		Issuer:         "stockledger",
		AccessTokenTTL: time.Minute,
	})
	svc := NewService(repo, jwtSvc, DefaultServiceConfig())

	ctx := tenant.WithTxManager(context.Background(), passthroughTxManager{})
	ctx = tenant.WithTenant(ctx, &tenant.Tenant{ID: "tenant-1", Slug: "acme"})
	return svc, repo, ctx
}

func TestRegisterFirstUserBecomesOwner(t *testing.T) {
	svc, _, ctx := newAuthFixture(t)

	first, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if first.Role != appctx.RoleOwner || first.Status != StatusApproved {
		t.Errorf("first user role=%s status=%s, want owner/approved", first.Role, first.Status)
	}

	second, err := svc.Register(ctx, RegisterRequest{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if second.Role != appctx.RoleViewer || second.Status != StatusPending {
		t.Errorf("second user role=%s status=%s, want viewer/pending", second.Role, second.Status)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, ctx := newAuthFixture(t)

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"}); err != nil {
		t.Fatalf("first register error: %v", err)
	}

	_, err := svc.Register(ctx, RegisterRequest{Username: "ALICE", Password: "password123"})
	if !apperror.IsDuplicate(err) {
		t.Fatalf("expected duplicate error for case-insensitive username, got %v", err)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	svc, _, ctx := newAuthFixture(t)

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "short"})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _, ctx := newAuthFixture(t)

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	token, user, err := svc.Login(ctx, Credentials{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want alice", user.Username)
	}

	uc, err := NewJWTService(JWTConfig{Secret: "test-secret"}).ValidateToken(token.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if uc.TenantID != "tenant-1" || uc.Role != appctx.RoleOwner {
		t.Errorf("claims tenant=%s role=%s, want tenant-1/owner", uc.TenantID, uc.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, ctx := newAuthFixture(t)

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	_, _, err := svc.Login(ctx, Credentials{Username: "alice", Password: "wrong-password"})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginPendingAccount(t *testing.T) {
	svc, repo, ctx := newAuthFixture(t)

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"}); err != nil {
		t.Fatalf("register error: %v", err)
	}
	pending, err := svc.Register(ctx, RegisterRequest{Username: "bob", Password: "password123"})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	_, _, err = svc.Login(ctx, Credentials{Username: "bob", Password: "password123"})
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("pending account must be forbidden, got %v", err)
	}

	if err := svc.Approve(ctx, pending.ID); err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if repo.users[pending.ID].Status != StatusApproved {
		t.Error("status must be approved")
	}
	if _, _, err := svc.Login(ctx, Credentials{Username: "bob", Password: "password123"}); err != nil {
		t.Fatalf("login after approval error: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	svc, repo, ctx := newAuthFixture(t)

	owner, _ := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"})
	bob, _ := svc.Register(ctx, RegisterRequest{Username: "bob", Password: "password123"})

	ownerCtx := appctx.WithUser(ctx, &appctx.UserContext{UserID: owner.ID.String(), Role: appctx.RoleOwner})

	// The only owner cannot be deleted.
	err := svc.DeleteUser(ctx, owner.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("deleting the last owner must be forbidden, got %v", err)
	}

	// Self-deletion is rejected.
	err = svc.DeleteUser(ownerCtx, owner.ID)
	appErr, ok = apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("self deletion must be forbidden, got %v", err)
	}

	if err := svc.DeleteUser(ownerCtx, bob.ID); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if _, ok := repo.users[bob.ID]; ok {
		t.Error("user must be removed")
	}
}

func TestSetRole(t *testing.T) {
	svc, repo, ctx := newAuthFixture(t)

	owner, _ := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "password123"})
	bob, _ := svc.Register(ctx, RegisterRequest{Username: "bob", Password: "password123"})

	if err := svc.SetRole(ctx, bob.ID, appctx.RoleAdmin); err != nil {
		t.Fatalf("SetRole() error: %v", err)
	}
	if repo.users[bob.ID].Role != appctx.RoleAdmin {
		t.Error("role must be updated")
	}

	if err := svc.SetRole(ctx, bob.ID, "superuser"); err == nil {
		t.Error("unknown role must be rejected")
	}

	// Owner cannot demote themself.
	ownerCtx := appctx.WithUser(ctx, &appctx.UserContext{UserID: owner.ID.String(), Role: appctx.RoleOwner})
	err := svc.SetRole(ownerCtx, owner.ID, appctx.RoleViewer)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("self demotion must be forbidden, got %v", err)
	}
}
