package dto

import (
	"time"

	"stockledger/internal/domain/auth"
)

// --- Request DTOs ---

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToAuthRequest converts DTO to domain request.
func (r *RegisterRequest) ToAuthRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		Username: r.Username,
		Password: r.Password,
	}
}

// LoginRequest is the request body for authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts DTO to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Username: r.Username,
		Password: r.Password,
	}
}

// SetRoleRequest is the request body for changing an account role.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// --- Response DTOs ---

// UserResponse is the response body for an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromUser creates response DTO from domain user.
func FromUser(u *auth.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// TokenResponse carries the issued access token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FromToken creates response DTO from domain token.
func FromToken(t *auth.Token) TokenResponse {
	return TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresAt:   t.ExpiresAt,
	}
}

// LoginResponse bundles the token with the authenticated user.
type LoginResponse struct {
	Token TokenResponse `json:"token"`
	User  *UserResponse `json:"user"`
}
