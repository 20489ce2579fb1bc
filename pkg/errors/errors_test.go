package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "oops", Status: 500, Err: inner}

	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "oops")
	assert.Contains(t, appErr.Error(), "boom")
	assert.Equal(t, inner, appErr.Unwrap())
}

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"not found", NotFound("user", "u-1"), http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.c"), http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("Invalid credentials"), http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden, ErrForbidden},
		{"internal", Internal(errors.New("x")), http.StatusInternalServerError, nil},
		{"configuration", Configuration("JWT secret is not configured"), http.StatusInternalServerError, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(tt.err, tt.sentinel))
			}
		})
	}
}

func TestHTTPStatus_SentinelMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyExists))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidInput))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestHTTPStatus_PrefersAppErrorStatus(t *testing.T) {
	wrapped := fmt.Errorf("rotate: %w", Unauthorized("Token is not active or does not exist"))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(wrapped))
}
