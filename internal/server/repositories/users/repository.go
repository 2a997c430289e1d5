// Package users is the credential store: persistence of user records behind
// Repository, with PostgreSQL and in-memory implementations, and
// CredentialStore which adds password-checked lookups.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/server/models"
)

// Repository is the record-store interface consumed by the auth service.
// Lookups return common.ErrorNotFound when no record matches; Create returns
// common.ErrDuplicateEmail when the (lowercase) email is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	UpdateFields(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)

	// ConsumeVerificationToken marks the owner of token verified and clears
	// the token in one step.
	ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error)

	// ConsumeResetToken replaces the password digest of the owner of token
	// with newHash and clears the token. An expired token is cleared and
	// reported as common.ErrTokenExpired.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.User, error)

	List(ctx context.Context) ([]*models.User, error)
	Ping(ctx context.Context) error
}
