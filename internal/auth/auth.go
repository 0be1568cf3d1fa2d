// Package auth provides account registration, credential checks, and the
// signed session tokens the API hands out as cookies.
package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/store"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// Service provides authentication operations.
type Service struct {
	store store.Store
}

// NewService creates a new auth service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, username, password string) (store.User, error) {
	log := logger.FromContext(ctx)

	if !usernameRegex.MatchString(username) {
		return store.User{}, apperror.New("invalid_username",
			"Username must be 3-32 characters (letters, digits, _ or -)", http.StatusBadRequest)
	}
	if err := ValidatePassword(password); err != nil {
		log.Debug("registration failed: invalid password", "username", username)
		return store.User{}, apperror.Wrap(err, apperror.ErrWeakPassword)
	}

	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return store.User{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	if exists {
		log.Debug("registration failed: username taken", "username", username)
		return store.User{}, apperror.ErrUsernameTaken
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return store.User{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	u := store.User{Username: username, PasswordHash: passwordHash}
	if err := s.store.CreateUser(ctx, u); err != nil {
		log.Warn("registration failed: could not create user", "username", username, "error", err)
		return store.User{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	log.Info("user registered", "username", username)
	return u, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(ctx context.Context, username, password string) (store.User, error) {
	log := logger.FromContext(ctx)

	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, apperror.ErrInvalidCredentials
		}
		return store.User{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	if err := CheckPassword(password, u.PasswordHash); err != nil {
		log.Debug("login failed: bad password", "username", username)
		return store.User{}, apperror.ErrInvalidCredentials
	}

	return u, nil
}
