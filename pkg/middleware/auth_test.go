package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okAuthenticator(identity Identity) TokenAuthenticator {
	return func(ctx context.Context, token string) (*Identity, error) {
		return &identity, nil
	}
}

func failAuthenticator() TokenAuthenticator {
	return func(ctx context.Context, token string) (*Identity, error) {
		return nil, errors.New("token revoked")
	}
}

func TestAuth_ValidToken(t *testing.T) {
	identity := Identity{UserID: "user-1", Email: "user@example.com"}

	var gotIdentity Identity
	var gotOK bool
	var gotToken string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, gotOK = IdentityFromContext(r.Context())
		gotToken = BearerTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()

	Auth(okAuthenticator(identity))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gotOK)
	assert.Equal(t, identity, gotIdentity)
	assert.Equal(t, "some.jwt.token", gotToken)
}

func TestAuth_MissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	Auth(okAuthenticator(Identity{}))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestAuth_MalformedHeader(t *testing.T) {
	cases := []string{
		"some.jwt.token",
		"Basic dXNlcjpwYXNz",
		"Bearer ",
		"Bearer",
	}

	for _, header := range cases {
		t.Run(header, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not be reached")
			})

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()

			Auth(okAuthenticator(Identity{}))(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_RevokedToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer revoked.jwt.token")
	rec := httptest.NewRecorder()

	Auth(failAuthenticator())(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthOptional_ValidToken(t *testing.T) {
	identity := Identity{UserID: "user-1", Email: "user@example.com"}

	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()

	AuthOptional(okAuthenticator(identity))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotOK)
}

func TestAuthOptional_NoToken(t *testing.T) {
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	rec := httptest.NewRecorder()

	AuthOptional(okAuthenticator(Identity{}))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotOK, "anonymous request must carry no identity")
}

func TestAuthOptional_RevokedToken(t *testing.T) {
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer revoked.jwt.token")
	rec := httptest.NewRecorder()

	AuthOptional(failAuthenticator())(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "optional auth never rejects")
	assert.False(t, gotOK)
}

func TestIdentityFromContext_Empty(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer lowercase.scheme.ok")

	token, ok := bearerToken(req)
	require.True(t, ok)
	assert.Equal(t, "lowercase.scheme.ok", token)
}
