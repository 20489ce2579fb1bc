package repository

import (
	"context"
	"time"

	"github.com/utafrali/authcore/internal/domain"
)

// UserRepository defines the interface for credential persistence operations.
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

// TokenRepository defines the interface for bearer token persistence. Rows
// are keyed by the full token string and are never deleted; revocation is the
// terminal state change.
type TokenRepository interface {
	// Create inserts a new token row.
	Create(ctx context.Context, token *domain.Token) error

	// GetByToken retrieves a token row by its exact token string.
	GetByToken(ctx context.Context, token string) (*domain.Token, error)

	// Touch records a use of the token. It updates last_used_at only when
	// the token is still active, and reports whether the update applied.
	// This doubles as the liveness check.
	Touch(ctx context.Context, token string, now time.Time) (bool, error)

	// Claim atomically deactivates an active token, reporting whether this
	// caller won the claim. At most one concurrent caller sees true for a
	// given token.
	Claim(ctx context.Context, token string, now time.Time) (bool, error)

	// Revoke deactivates a token unconditionally. Revoking an already
	// revoked or unknown token is a no-op.
	Revoke(ctx context.Context, token string, now time.Time) error

	// RevokeAllByUserID deactivates every active token belonging to the
	// user and returns how many were revoked.
	RevokeAllByUserID(ctx context.Context, userID string, now time.Time) (int64, error)

	// LinkRotation records the lineage between a retired token and its
	// replacement on both rows.
	LinkRotation(ctx context.Context, oldToken, newToken string) error

	// ListActiveByUserID returns the user's active tokens, newest first.
	ListActiveByUserID(ctx context.Context, userID string) ([]domain.Token, error)
}
