package auth

import (
	"fmt"
	"time"

	"hyperadmin/internal/apperr"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "read_only"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleReadOnly
}

// Admin is an operator allowed to sign in to the API. Admins are not user
// records; they live in their own table.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	// ErrInvalidCredentials is returned for an unknown username and for a
	// wrong password alike.
	ErrInvalidCredentials = fmt.Errorf("%w: incorrect username or password", apperr.ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: could not validate credentials", apperr.ErrUnauthenticated)
	ErrInsufficientRole   = fmt.Errorf("%w: role does not permit this operation", apperr.ErrForbidden)
)
