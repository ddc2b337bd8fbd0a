package users

import (
	"fmt"

	"hyperadmin/internal/apperr"
)

var (
	ErrNotFound = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrConflict = fmt.Errorf("%w: discord id is already registered", apperr.ErrConflict)
)
