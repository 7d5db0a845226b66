package repository

import (
	"context"

	"instashare/internal/model"
)

// UserRepository defines data access for user accounts using SQL queries only.
// No business logic here — strictly persistence operations.
type UserRepository interface {
	// Create inserts a new user record and returns the stored row.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByID returns a user by ID.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername returns a user by username.
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}
