package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/pkg/auth"
)

// UserLookup defines the user table read used at admin login
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// CredentialResult is a matched user row. HasAdminAccess is false when the
// credentials are valid but the account lacks the admin flag.
type CredentialResult struct {
	User           *models.User
	HasAdminAccess bool
}

// CredentialValidator checks a username/password pair against the users table
type CredentialValidator struct {
	users UserLookup
}

func NewCredentialValidator(users UserLookup) *CredentialValidator {
	return &CredentialValidator{users: users}
}

// Validate returns (nil, nil) for invalid credentials and a non-nil error only
// when the lookup itself failed.
func (v *CredentialValidator) Validate(ctx context.Context, username, password string) (*CredentialResult, error) {
	email := strings.ToLower(strings.TrimSpace(username))
	if email == "" || password == "" {
		return nil, nil
	}

	user, err := v.users.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		// Keep the miss as slow as a wrong password
		_ = auth.CompareDummy(password)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil
	}

	return &CredentialResult{User: user, HasAdminAccess: user.IsAdmin}, nil
}
