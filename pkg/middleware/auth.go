package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// Identity is the authenticated principal bound to a request. Requests that
// carry no valid live token have no Identity in context at all; there is no
// anonymous placeholder with empty fields.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenAuthenticator turns a raw bearer token into an Identity. It must check
// both the token's signature and its persisted liveness; a cryptographically
// valid but revoked token is an error.
type TokenAuthenticator func(ctx context.Context, token string) (*Identity, error)

// Auth returns middleware that requires a live bearer token. Requests with a
// missing or malformed Authorization header, an invalid signature, or a
// revoked token are rejected with 401 and never reach the next handler.
func Auth(authenticate TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "missing or invalid authorization header")
				return
			}

			identity, err := authenticate(r.Context(), token)
			if err != nil {
				writeAuthError(w, "invalid or revoked token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, *identity)
			ctx = WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthOptional returns middleware that runs the same pipeline as Auth but
// never rejects: on any failure the request continues without an Identity and
// IdentityFromContext reports unauthenticated.
func AuthOptional(authenticate TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := authenticate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, *identity)
			ctx = WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from the request
// context. The second return value reports whether the request is
// authenticated; callers must branch on it rather than inspecting fields.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// BearerTokenFromContext returns the raw token the current request presented.
func BearerTokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(bearerTokenKey).(string); ok {
		return t
	}
	return ""
}

const bearerTokenKey contextKeyType = "bearer_token"

// WithBearerToken stores the raw presented token in the context so handlers
// like revoke-current-token can reference it.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": "UNAUTHORIZED", "message": message},
	})
}
