package repository

import (
	"context"

	"github.com/nkiryanov/blog/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error)

	// Get user by it's id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Set user flags. Must return apperrors.ErrUserNotFound if user not exists
	SetActive(ctx context.Context, userID int64, active bool) error
	SetSuperuser(ctx context.Context, userID int64, superuser bool) error

	// Replace password hash. Must return apperrors.ErrUserNotFound if user not exists
	SetPassword(ctx context.Context, userID int64, hashedPassword string) error
}

type Storage interface {
	User() UserRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
