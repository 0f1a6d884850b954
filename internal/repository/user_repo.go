package repository

import (
	"context"

	"github.com/user/webmonitor/internal/entity"
)

// UserRepository resolves owners for sites created by unauthenticated ingestion.
type UserRepository interface {
	// Create inserts a user. Accounts normally come from the external
	// sign-up flow; this exists for operators and fixtures.
	Create(ctx context.Context, u *entity.User) error
	// DefaultOwner returns the earliest-created user, creating a placeholder
	// with fallbackEmail when there are no users at all.
	DefaultOwner(ctx context.Context, fallbackEmail string) (*entity.User, error)
}
