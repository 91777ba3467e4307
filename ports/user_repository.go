package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"investorradar/models"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *models.User) error

	// GetByID fetches a user by id, core.ErrUserNotFound when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail fetches a user by email, core.ErrUserNotFound when missing.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List returns every account, newest first.
	List(ctx context.Context) ([]*models.User, error)

	// Count returns the number of accounts.
	Count(ctx context.Context) (int, error)
}

// TokenRepository persists API tokens. Only the SHA-256 digest of a token
// is ever stored; the plaintext exists only in the login response.
type TokenRepository interface {
	// Save inserts a freshly minted token.
	Save(ctx context.Context, token *models.APIToken) error

	// FindByDigest looks up a token by digest, core.ErrTokenExpired for
	// expired rows and core.ErrNotFound when no row matches.
	FindByDigest(ctx context.Context, digest string) (*models.APIToken, error)

	// TouchLastUsed stamps the last-seen time of a token.
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error

	// Revoke deletes the token with the given digest.
	Revoke(ctx context.Context, digest string) error

	// DeleteExpired prunes tokens past their expiry, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
