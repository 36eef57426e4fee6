// Package auth provides authentication and authorization domain logic.
package auth

import (
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

// Account status. Pending accounts exist but cannot log in until an
// owner approves them.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// User is an account within a tenant database.
type User struct {
	ID           id.ID     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// NewUser creates a pending viewer account.
func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           id.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         appctx.RoleViewer,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// CanLogin reports whether the account is allowed to authenticate.
func (u *User) CanLogin() error {
	if u.Status != StatusApproved {
		return apperror.NewForbidden("account is pending approval")
	}
	return nil
}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case appctx.RoleViewer, appctx.RoleAdmin, appctx.RoleOwner:
		return true
	}
	return false
}

// Credentials are login inputs.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries sign-up inputs.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Token is an issued access token with its expiry.
type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
