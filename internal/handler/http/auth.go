package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/authcore/internal/service"
	"github.com/utafrali/authcore/pkg/logger"
	"github.com/utafrali/authcore/pkg/middleware"
	"github.com/utafrali/authcore/pkg/validator"
)

// AuthHandler handles HTTP requests for token lifecycle endpoints.
type AuthHandler struct {
	service *service.TokenService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account creation.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RotateRequest is the JSON request body for token rotation. The old token is
// the one presented in the Authorization header; revoke_old_token defaults to
// true.
type RotateRequest struct {
	RevokeOldToken *bool `json:"revoke_old_token"`
}

// RevokeRequest is the JSON request body for revoking a token. When the token
// field is empty the currently presented bearer token is revoked.
type RevokeRequest struct {
	Token string `json:"token"`
}

// --- Response types ---

// AuthResponse pairs a freshly issued token with its account.
type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

// RotateResponse is the JSON response for a successful rotation.
type RotateResponse struct {
	Token           string `json:"token"`
	User            any    `json:"user"`
	RevokedOldToken bool   `json:"revoked_old_token"`
}

// --- Handlers ---

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    AuthResponse{Token: result.Token, User: result.User},
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    AuthResponse{Token: result.Token, User: result.User},
	})
}

// Rotate handles POST /auth/rotate
func (h *AuthHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	oldToken := middleware.BearerTokenFromContext(r.Context())
	if oldToken == "" {
		h.logger.Warn("rotate called without bearer token in context")
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "no bearer token presented"},
		})
		return
	}

	// An empty body is fine; rotation then revokes the old token.
	revokeOld := true
	var req RotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RevokeOldToken != nil {
		revokeOld = *req.RevokeOldToken
	}

	result, err := h.service.Rotate(r.Context(), oldToken, revokeOld)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: RotateResponse{
			Token:           result.Token,
			User:            result.User,
			RevokedOldToken: result.RevokedOld,
		},
	})
}

// ListTokens handles GET /auth/tokens
func (h *AuthHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	tokens, err := h.service.ListActiveTokens(r.Context(), identity.Email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: map[string]any{
			"tokens": tokens,
			"count":  len(tokens),
		},
	})
}

// Revoke handles POST /auth/revoke
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RevokeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := req.Token
	if token == "" {
		token = middleware.BearerTokenFromContext(r.Context())
	}

	if err := h.service.Revoke(r.Context(), token, identity.UserID); err != nil {
		writeAppError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("token revoked")

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]string{"message": "Token revoked"},
	})
}

// RevokeAll handles POST /auth/revoke-all
func (h *AuthHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	count, err := h.service.RevokeAll(r.Context(), identity.Email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("revoked all tokens", slog.Int64("count", count))

	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]string{"message": fmt.Sprintf("Revoked %d tokens", count)},
	})
}
