package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/authcore/pkg/errors"
)

const testSecret = "test-secret-key"

func TestSignAndVerify(t *testing.T) {
	signer := NewSigner(testSecret)

	token, err := signer.Sign("user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestSign_NoExpiryClaim(t *testing.T) {
	signer := NewSigner(testSecret)

	token, err := signer.Sign("user@example.com")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))

	assert.NotContains(t, claims, "exp", "tokens must never carry an expiry")
	assert.Contains(t, claims, "iat")
	assert.Equal(t, "user@example.com", claims["email"])
}

func TestVerify_TamperedToken(t *testing.T) {
	signer := NewSigner(testSecret)

	token, err := signer.Sign("user@example.com")
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "XXXX"
	_, err = signer.Verify(tampered)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Invalid token", appErr.Message)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Sign("user@example.com")
	require.NoError(t, err)

	_, err = NewSigner("secret-b").Verify(token)
	assert.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	signer := NewSigner(testSecret)
	_, err := signer.Verify("not.a.jwt")
	assert.Error(t, err)
}

func TestSign_EmptySecret(t *testing.T) {
	signer := NewSigner("")

	_, err := signer.Sign("user@example.com")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestVerify_EmptySecret(t *testing.T) {
	signer := NewSigner("")
	_, err := signer.Verify("whatever")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}
