package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/vibast-solutions/ms-go-linkhub/app/entity"
	"github.com/vibast-solutions/ms-go-linkhub/app/store"
	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/sirupsen/logrus"
)

const minUsernameLength = 3

type NewUser struct {
	Username string
	Email    string
	Password string
	FullName string
	IsAdmin  bool
}

// UserChanges holds optional edits; nil fields are left untouched.
type UserChanges struct {
	Email    *string
	FullName *string
	IsActive *bool
	IsAdmin  *bool
}

type UserService struct {
	store  store.Gateway
	hasher *Hasher
	policy config.PasswordPolicy
	opts   options
}

func NewUserService(gateway store.Gateway, hasher *Hasher, policy config.PasswordPolicy, opts ...Option) *UserService {
	return &UserService{
		store:  gateway,
		hasher: hasher,
		policy: policy,
		opts:   newOptions(opts),
	}
}

func (s *UserService) Register(ctx context.Context, input NewUser) (*entity.User, error) {
	input.IsAdmin = false
	return s.create(ctx, input)
}

func (s *UserService) CreateByAdmin(ctx context.Context, input NewUser) (*entity.User, error) {
	return s.create(ctx, input)
}

func (s *UserService) create(ctx context.Context, input NewUser) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email := CanonicalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if err := checkPassword(s.policy, input.Password); err != nil {
		return nil, err
	}

	existing, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username is taken", ErrUserExists)
	}
	existing, err = s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email is already registered", ErrUserExists)
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		if errors.Is(err, ErrWeakInput) {
			return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		}
		return nil, err
	}

	now := s.opts.utcNow()
	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     nullString(input.FullName),
		IsActive:     true,
		IsAdmin:      input.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.store.Users().Create(ctx, user); err != nil {
		// A concurrent registration can still win the unique key.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email is taken", ErrUserExists)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User created")
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (*entity.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile lets a user change their own email and full name.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, email, fullName *string) (*entity.User, error) {
	return s.update(ctx, userID, UserChanges{Email: email, FullName: fullName})
}

// UpdateByAdmin can also toggle the active and admin flags. Sessions of a deactivated
// user stay stored and resolve to nothing until the user is active again.
func (s *UserService) UpdateByAdmin(ctx context.Context, userID uint64, changes UserChanges) (*entity.User, error) {
	return s.update(ctx, userID, changes)
}

func (s *UserService) update(ctx context.Context, userID uint64, changes UserChanges) (*entity.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if changes.Email != nil {
		email := CanonicalizeEmail(*changes.Email)
		if !validEmail(email) {
			return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
		}
		if email != user.Email {
			other, err := s.store.Users().FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != user.ID {
				return nil, fmt.Errorf("%w: email is already registered", ErrUserExists)
			}
		}
		user.Email = email
	}
	if changes.FullName != nil {
		user.FullName = nullString(*changes.FullName)
	}
	if changes.IsActive != nil {
		user.IsActive = *changes.IsActive
	}
	if changes.IsAdmin != nil {
		user.IsAdmin = *changes.IsAdmin
	}

	user.UpdatedAt = s.opts.utcNow()
	if err = s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email is already registered", ErrUserExists)
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword requires the current password and closes every other session of the
// user. keepToken is the session the request came in on.
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, currentPassword, newPassword, keepToken string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(ctx, currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err = checkPassword(s.policy, newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		if errors.Is(err, ErrWeakInput) {
			return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		}
		return err
	}

	return s.store.WithTx(ctx, func(tx store.Gateway) error {
		if err := tx.Users().UpdatePassword(ctx, userID, hash, s.opts.utcNow()); err != nil {
			return err
		}
		_, err := tx.Sessions().DeleteByUserIDExcept(ctx, userID, keepToken)
		return err
	})
}

func (s *UserService) List(ctx context.Context) ([]*entity.User, error) {
	return s.store.Users().List(ctx)
}

func (s *UserService) Delete(ctx context.Context, actorID, userID uint64) error {
	if actorID == userID {
		return ErrCannotDeleteSelf
	}
	deleted, err := s.store.Users().Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "actor_id": actorID}).Info("User deleted")
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength {
		return fmt.Errorf("%w: username must be at least %d characters long", ErrInvalidInput, minUsernameLength)
	}
	for _, ch := range username {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			return fmt.Errorf("%w: username must contain only letters and numbers", ErrInvalidInput)
		}
	}
	return nil
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
