package domain

import (
	"time"
)

// Token descriptions, set at issue time by the operation that minted the
// token.
const (
	DescriptionSignup  = "Signup Token"
	DescriptionLogin   = "Login Token"
	DescriptionRotated = "Rotated Token"
)

// Token is a persisted bearer credential. The row is keyed by the exact JWT
// string; the email is denormalized for audit queries. A token moves from
// active to revoked exactly once and is never deleted, so the rotation chain
// stays auditable forever.
type Token struct {
	Token       string     `json:"token"`
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  time.Time  `json:"last_used_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RotatedFrom *string    `json:"rotated_from,omitempty"`
	RotatedTo   *string    `json:"rotated_to,omitempty"`
}

// TokenSummary is the list-view projection of a token. The token field holds
// a truncated prefix only; the full credential never appears in listings.
type TokenSummary struct {
	Token       string    `json:"token"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// Summary returns the listing projection with the token truncated to the
// given prefix length.
func (t *Token) Summary(prefixLen int) TokenSummary {
	prefix := t.Token
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen] + "..."
	}
	return TokenSummary{
		Token:       prefix,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		LastUsedAt:  t.LastUsedAt,
	}
}
