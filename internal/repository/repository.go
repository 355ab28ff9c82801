package repository

import (
	"context"
	"time"

	"github.com/utafrali/AuthGo/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error
}

// RefreshTokenRepository defines the interface for refresh token persistence
// operations. Tokens are stored by SHA-256 digest only.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Revoke marks a live token revoked. Revocation is compare-and-set: if
	// the token is already revoked or unknown, ErrNotFound is returned so
	// concurrent rotations have exactly one winner.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeByUserID revokes all live refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string) error

	// DeleteExpired removes token records whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
