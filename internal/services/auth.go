// Package services holds the operations behind the HTTP and realtime
// surfaces. Errors are returned as apperror kinds; transports translate them.
package services

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/apperror"
	"chat-relay/internal/auth"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
}

// AuthService registers users and logs them in.
type AuthService struct {
	users  repositories.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewAuthService builds an AuthService.
func NewAuthService(users repositories.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

// Register stores a new user with a hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.User, error) {
	if err := requireCredentials(username, password); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return models.User{}, apperror.Validation("password", "Password must be 72 bytes or fewer")
		}
		return models.User{}, apperror.Internal("Error registering user", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, repositories.ErrUsernameTaken) {
			return models.User{}, apperror.Conflict("Username already exists")
		}
		return models.User{}, apperror.Internal("Error registering user", fmt.Errorf("create user: %w", err))
	}
	return user, nil
}

// Login checks credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if err := requireCredentials(username, password); err != nil {
		return "", err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", apperror.Unauthorized("Invalid credentials")
		}
		return "", apperror.Internal("Error logging in", fmt.Errorf("get user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", apperror.Unauthorized("Invalid credentials")
		}
		return "", apperror.Internal("Error logging in", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", apperror.Internal("Error logging in", err)
	}
	return token, nil
}

func requireCredentials(username, password string) error {
	switch {
	case username == "":
		return apperror.Validation("username", "Username and password required")
	case password == "":
		return apperror.Validation("password", "Username and password required")
	}
	return nil
}
