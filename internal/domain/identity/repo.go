package identity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Directory resolves users for other domains.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
}
