package auth

import (
	"context"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrUserNotFound       = apperr.NotFound("user not found")
	ErrUsernameTaken      = apperr.Conflict("username already taken")
	ErrInvalidCredentials = apperr.Unauthorized("invalid username or password")
	ErrUserDisabled       = apperr.Forbidden("account is disabled")
)

// UserFilter narrows the admin user list. Keyword matches username, real name,
// email or phone.
type UserFilter struct {
	Role    *Role
	Keyword string
	Active  *bool
}

type Repository interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, u User) (*User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	UpdateProfile(ctx context.Context, u User) (*User, error)
	ListUsers(ctx context.Context, f UserFilter, page db.Page) ([]User, int, error)
}
