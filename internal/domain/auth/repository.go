package auth

import (
	"context"

	"stockledger/internal/core/id"
)

// UserRepository persists user accounts. Username lookups are
// case-insensitive.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, userID id.ID, status string) error
	UpdateRole(ctx context.Context, userID id.ID, role string) error
	Delete(ctx context.Context, userID id.ID) error
}
