package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines read access to the identity directory.
type Repository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByAuthID(ctx context.Context, authID string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
