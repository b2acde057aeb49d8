package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/models"
	"github.com/nkiryanov/blog/internal/repository"
	"github.com/nkiryanov/blog/internal/service/auth"
)

// Compared against when user is not found, so unknown and existing users take the same time
const dummyPassword = "dummy-password-never-matches"

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage

	dummyOnce sync.Once
	dummyHash string
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, email string, password string) (models.User, error) {
	var user models.User
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, username, email, hash)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Find user by username or email and check the password
// Unknown user and wrong password are the same error and cost the same hash comparison
func (s *UserService) VerifyCredentials(ctx context.Context, identifier string, password string) (models.User, error) {
	var (
		user models.User
		err  error
	)

	users := s.storage.User()
	if strings.Contains(identifier, "@") {
		user, err = users.GetUserByEmail(ctx, identifier)
	} else {
		user, err = users.GetUserByUsername(ctx, identifier)
	}

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.getDummyHash(), password)
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Replace user password if the old one matches
// Wrong old password is apperrors.ErrWrongPassword
func (s *UserService) UpdatePassword(ctx context.Context, userID int64, oldPassword string, newPassword string) error {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.ErrWrongPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	return s.storage.User().SetPassword(ctx, userID, hash)
}

// Change user flags on behalf of actor. Actor can't change own flags
// Both flags are applied in one transaction
func (s *UserService) UpdateFlags(ctx context.Context, actorID int64, userID int64, flags models.UserFlags) (models.User, error) {
	if actorID == userID {
		return models.User{}, apperrors.ErrPermissionDenied
	}

	var user models.User
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		users := tx.User()

		if flags.IsActive != nil {
			if err := users.SetActive(ctx, userID, *flags.IsActive); err != nil {
				return err
			}
		}
		if flags.IsSuperuser != nil {
			if err := users.SetSuperuser(ctx, userID, *flags.IsSuperuser); err != nil {
				return err
			}
		}

		var err error
		user, err = users.GetUserByID(ctx, userID)
		return err
	})

	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		// On error hash stays empty and Compare fails anyway
		s.dummyHash, _ = s.hasher.Hash(dummyPassword)
	})
	return s.dummyHash
}
