package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/authcore/internal/auth"
	"github.com/utafrali/authcore/internal/domain"
	"github.com/utafrali/authcore/internal/event"
	"github.com/utafrali/authcore/internal/service"
	apperrors "github.com/utafrali/authcore/pkg/errors"
	"github.com/utafrali/authcore/pkg/health"
	pkgkafka "github.com/utafrali/authcore/pkg/kafka"
	"github.com/utafrali/authcore/pkg/middleware"
)

// --- Mock Repositories ---

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, token *domain.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepo) GetByToken(ctx context.Context, token string) (*domain.Token, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *mockTokenRepo) Touch(ctx context.Context, token string, now time.Time) (bool, error) {
	args := m.Called(ctx, token, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) Claim(ctx context.Context, token string, now time.Time) (bool, error) {
	args := m.Called(ctx, token, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) Revoke(ctx context.Context, token string, now time.Time) error {
	args := m.Called(ctx, token, now)
	return args.Error(0)
}

func (m *mockTokenRepo) RevokeAllByUserID(ctx context.Context, userID string, now time.Time) (int64, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepo) LinkRotation(ctx context.Context, oldToken, newToken string) error {
	args := m.Called(ctx, oldToken, newToken)
	return args.Error(0)
}

func (m *mockTokenRepo) ListActiveByUserID(ctx context.Context, userID string) ([]domain.Token, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Token), args.Error(1)
}

// --- Test Helpers ---

const testSecret = "handler-test-secret"

func newTestRouter(userRepo *mockUserRepo, tokenRepo *mockTokenRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	signer := auth.NewSigner(testSecret)
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig([]string{"localhost:9092"}), logger)
	producer := event.NewProducer(kafkaProducer, logger)
	svc := service.NewTokenService(userRepo, tokenRepo, signer, producer, logger)

	return NewRouter(svc, health.NewHandler(), logger, RouterConfig{
		CORS:           middleware.CORSConfig{Environment: "development"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
}

func testAccount() *domain.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	now := time.Now().UTC()
	return &domain.User{
		ID:           "user-001",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Name:         "Jane Doe",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Signup ---

func TestSignup_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "new@example.com",
		"password": "secret",
		"name":     "New User",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "new@example.com", user["email"])
	assert.NotContains(t, user, "password_hash", "hash must never be serialized")
}

func TestSignup_Endpoint_ValidationFailure(t *testing.T) {
	router := newTestRouter(new(mockUserRepo), new(mockTokenRepo))

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "ab",
		"name":     "X",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	fields := errObj["fields"].(map[string]any)
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Password")
}

func TestSignup_Endpoint_DuplicateEmail(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := newTestRouter(userRepo, new(mockTokenRepo))

	userRepo.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("user", "email", "taken@example.com"))

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "taken@example.com",
		"password": "secret",
		"name":     "Taken",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "ALREADY_EXISTS", errObj["code"])
}

func TestSignup_Endpoint_WrongContentType(t *testing.T) {
	router := newTestRouter(new(mockUserRepo), new(mockTokenRepo))

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// --- Login ---

func TestLogin_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    user.Email,
		"password": "correct-password",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
}

func TestLogin_Endpoint_InvalidCredentials(t *testing.T) {
	userRepo := new(mockUserRepo)
	router := newTestRouter(userRepo, new(mockTokenRepo))

	userRepo.On("GetByEmail", mock.Anything, "unknown@example.com").Return(nil, apperrors.ErrNotFound)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "unknown@example.com",
		"password": "whatever",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errObj := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "Invalid credentials", errObj["message"])
}

// --- Profile ---

func TestGetProfile_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	rec := doJSON(t, router, http.MethodGet, "/auth/me", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, user.Email, data["email"])
}

func TestGetProfile_Endpoint_NoToken(t *testing.T) {
	router := newTestRouter(new(mockUserRepo), new(mockTokenRepo))

	rec := doJSON(t, router, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProfile_Endpoint_RevokedToken(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	token, err := auth.NewSigner(testSecret).Sign("user@example.com")
	require.NoError(t, err)

	// Cryptographically valid, but no longer live in the store.
	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(false, nil)

	rec := doJSON(t, router, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("Update", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := doJSON(t, router, http.MethodPut, "/auth/update", token, map[string]string{
		"name": "Renamed",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Renamed", data["name"])
}

// --- Rotation ---

func TestRotate_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("Claim", mock.Anything, token, mock.Anything).Return(true, nil)
	tokenRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Token")).Return(nil)
	tokenRepo.On("LinkRotation", mock.Anything, token, mock.AnythingOfType("string")).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/rotate", token, map[string]bool{
		"revoke_old_token": true,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, true, data["revoked_old_token"])
}

func TestRotate_Endpoint_ClaimLost(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	// The middleware liveness check passes, then a concurrent rotation
	// wins the claim first.
	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("Claim", mock.Anything, token, mock.Anything).Return(false, nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/rotate", token, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errObj := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "Token is not active or does not exist", errObj["message"])
}

// --- Revocation ---

func TestRevoke_Endpoint_CurrentToken(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("GetByToken", mock.Anything, token).
		Return(&domain.Token{Token: token, UserID: user.ID, Email: user.Email, IsActive: true}, nil)
	tokenRepo.On("Revoke", mock.Anything, token, mock.Anything).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/revoke", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	tokenRepo.AssertCalled(t, "Revoke", mock.Anything, token, mock.Anything)
}

func TestRevoke_Endpoint_ForeignToken(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	// The named token in the body belongs to another account.
	tokenRepo.On("GetByToken", mock.Anything, "someone-elses-token").
		Return(&domain.Token{Token: "someone-elses-token", UserID: "user-999", IsActive: true}, nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/revoke", token, map[string]string{
		"token": "someone-elses-token",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	tokenRepo.AssertNotCalled(t, "Revoke")
}

func TestRevokeAll_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("RevokeAllByUserID", mock.Anything, user.ID, mock.Anything).Return(int64(3), nil)

	rec := doJSON(t, router, http.MethodPost, "/auth/revoke-all", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Revoked 3 tokens", data["message"])
}

// --- Listing ---

func TestListTokens_Endpoint_Success(t *testing.T) {
	userRepo := new(mockUserRepo)
	tokenRepo := new(mockTokenRepo)
	router := newTestRouter(userRepo, tokenRepo)

	user := testAccount()
	token, err := auth.NewSigner(testSecret).Sign(user.Email)
	require.NoError(t, err)

	now := time.Now().UTC()
	tokenRepo.On("Touch", mock.Anything, token, mock.Anything).Return(true, nil)
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	tokenRepo.On("ListActiveByUserID", mock.Anything, user.ID).Return([]domain.Token{
		{Token: "eyJhbGciOiJIUzI1NiJ9.abc.def", Description: domain.DescriptionLogin, CreatedAt: now, LastUsedAt: now},
	}, nil)

	rec := doJSON(t, router, http.MethodGet, "/auth/tokens", token, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["count"])

	tokens := data["tokens"].([]any)
	first := tokens[0].(map[string]any)
	assert.Equal(t, "eyJhbGciOi...", first["token"])
}

// --- Health ---

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(new(mockUserRepo), new(mockTokenRepo))

	rec := doJSON(t, router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
