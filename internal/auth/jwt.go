package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/authcore/pkg/errors"
)

// Claims is the payload carried by every issued token. There is no expiry
// claim: tokens are long-lived by design and revocation in the token store is
// the only invalidation path.
type Claims struct {
	Email    string `json:"email"`
	IssuedAt int64  `json:"iat"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return "", nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// Signer signs and verifies bearer tokens with HS256.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer. An empty secret is accepted here so the service
// can boot without one; signing then fails with a configuration error on
// first use rather than a silent insecure default.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign mints a token for the given email with the current issue timestamp.
func (s *Signer) Sign(email string) (string, error) {
	if len(s.secret) == 0 {
		return "", apperrors.Configuration("JWT secret is not configured")
	}

	claims := Claims{
		Email:    email,
		IssuedAt: time.Now().UTC().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and returns the embedded email. It is a
// pure signature check: whether the token is still live is the token store's
// question, not the signer's.
func (s *Signer) Verify(tokenString string) (string, error) {
	if len(s.secret) == 0 {
		return "", apperrors.Configuration("JWT secret is not configured")
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("Invalid token")
	}

	return claims.Email, nil
}
