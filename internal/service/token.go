package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/authcore/internal/auth"
	"github.com/utafrali/authcore/internal/domain"
	"github.com/utafrali/authcore/internal/event"
	"github.com/utafrali/authcore/internal/repository"
	apperrors "github.com/utafrali/authcore/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 5

// tokenPrefixLen is how many characters of a token survive into listings and
// events.
const tokenPrefixLen = 10

// invalidCredentials is the single message returned for any login failure so
// responses cannot be used to probe which accounts exist.
const invalidCredentials = "Invalid credentials"

// inactiveToken is returned when an operation requires a live token and the
// presented one is revoked or unknown.
const inactiveToken = "Token is not active or does not exist"

// TokenService implements the business logic for accounts and bearer tokens.
type TokenService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	signer    *auth.Signer
	producer  *event.Producer
	logger    *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	signer *auth.Signer,
	producer *event.Producer,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		signer:    signer,
		producer:  producer,
		logger:    logger,
	}
}

// --- Input/Output types ---

// SignupInput holds the parameters for creating a new account.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput holds the parameters for a partial profile update.
type UpdateProfileInput struct {
	Name     *string
	Password *string
}

// AuthResult pairs a freshly issued token with its account.
type AuthResult struct {
	Token string
	User  *domain.User
}

// RotateResult is the outcome of a token rotation.
type RotateResult struct {
	Token      string
	User       *domain.User
	RevokedOld bool
}

// --- Account operations ---

// Signup creates a new account and issues its first token.
func (s *TokenService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Name:         input.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueToken(ctx, user, domain.DescriptionSignup)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// Login authenticates an account by email and password and issues a new
// token. A missing account and a wrong password produce the identical error
// so neither response reveals whether the email is registered.
func (s *TokenService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	token, err := s.issueToken(ctx, user, domain.DescriptionLogin)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{Token: token, User: user}, nil
}

// --- Token operations ---

// Issue signs and persists a new active token for the given email.
func (s *TokenService) Issue(ctx context.Context, email, description string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get user for token issue: %w", err)
	}
	return s.issueToken(ctx, user, description)
}

// VerifySignature checks a token cryptographically and returns the embedded
// email. It says nothing about whether the token is still live.
func (s *TokenService) VerifySignature(token string) (string, error) {
	return s.signer.Verify(token)
}

// IsActive reports whether the token is live in the store. A true result
// also records the use: the token's last_used_at has been advanced as a side
// effect of the same write that answered the question.
func (s *TokenService) IsActive(ctx context.Context, token string) (bool, error) {
	return s.tokenRepo.Touch(ctx, token, time.Now().UTC())
}

// Authenticate is the full pipeline behind the auth middleware: verify the
// signature, check liveness in the store, and resolve the account.
func (s *TokenService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	email, err := s.VerifySignature(token)
	if err != nil {
		return nil, err
	}

	alive, err := s.tokenRepo.Touch(ctx, token, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("check token liveness: %w", err)
	}
	if !alive {
		return nil, apperrors.Unauthorized(inactiveToken)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid token")
	}

	return user, nil
}

// Revoke deactivates a token owned by the given account. Revoking an already
// revoked or unknown token succeeds silently; a token that belongs to a
// different account is refused.
func (s *TokenService) Revoke(ctx context.Context, token, ownerID string) error {
	if token == "" {
		return apperrors.InvalidInput("token is required")
	}

	row, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up token for revoke: %w", err)
	}
	if row.UserID != ownerID {
		return apperrors.Forbidden("token belongs to a different account")
	}

	if err := s.tokenRepo.Revoke(ctx, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.logger.InfoContext(ctx, "token revoked",
		slog.String("user_id", ownerID),
	)
	return nil
}

// RevokeAll deactivates every active token for the account and returns how
// many were revoked.
func (s *TokenService) RevokeAll(ctx context.Context, email string) (int64, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("get user for revoke all: %w", err)
	}

	count, err := s.tokenRepo.RevokeAllByUserID(ctx, user.ID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.producer.PublishTokenRevoked(ctx, user.ID, count); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token.revoked event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "all tokens revoked",
		slog.String("user_id", user.ID),
		slog.Int64("count", count),
	)

	return count, nil
}

// Rotate exchanges a live token for a fresh one. With revokeOld the old token
// is claimed first with a conditional update, so of any number of concurrent
// rotations of the same token exactly one obtains a replacement; the rest
// fail with an authentication error. Without revokeOld the old token stays
// live alongside the new one.
func (s *TokenService) Rotate(ctx context.Context, oldToken string, revokeOld bool) (*RotateResult, error) {
	email, err := s.VerifySignature(oldToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if revokeOld {
		won, err := s.tokenRepo.Claim(ctx, oldToken, now)
		if err != nil {
			return nil, fmt.Errorf("claim token for rotation: %w", err)
		}
		if !won {
			return nil, apperrors.Unauthorized(inactiveToken)
		}
	} else {
		alive, err := s.tokenRepo.Touch(ctx, oldToken, now)
		if err != nil {
			return nil, fmt.Errorf("check token for rotation: %w", err)
		}
		if !alive {
			return nil, apperrors.Unauthorized(inactiveToken)
		}
	}

	// The claim is not unwound if the account is gone: a revoked orphan
	// token for a missing account is strictly safer than a live one.
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user for rotation: %w", err)
	}

	newToken, err := s.issueToken(ctx, user, domain.DescriptionRotated)
	if err != nil {
		return nil, err
	}

	if revokeOld {
		if err := s.tokenRepo.LinkRotation(ctx, oldToken, newToken); err != nil {
			s.logger.ErrorContext(ctx, "failed to link rotation chain",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishTokenRotated(ctx, user.ID, prefix(oldToken), prefix(newToken), revokeOld); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish token.rotated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "token rotated",
		slog.String("user_id", user.ID),
		slog.Bool("old_revoked", revokeOld),
	)

	return &RotateResult{Token: newToken, User: user, RevokedOld: revokeOld}, nil
}

// ListActiveTokens returns summaries of the account's live tokens. Only a
// short prefix of each token is exposed.
func (s *TokenService) ListActiveTokens(ctx context.Context, email string) ([]domain.TokenSummary, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user for token list: %w", err)
	}

	tokens, err := s.tokenRepo.ListActiveByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}

	summaries := make([]domain.TokenSummary, 0, len(tokens))
	for i := range tokens {
		summaries = append(summaries, tokens[i].Summary(tokenPrefixLen))
	}

	return summaries, nil
}

// --- Profile operations ---

// GetProfile retrieves the account for the given email.
func (s *TokenService) GetProfile(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial update to the account. A password change
// rehashes; existing tokens stay live.
func (s *TokenService) UpdateProfile(ctx context.Context, email string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		user.Name = *input.Name
	}

	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash new password: %w", err)
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := s.producer.PublishUserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// --- Ownership gate ---

// GetUserID resolves an email to its account ID.
func (s *TokenService) GetUserID(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get user id: %w", err)
	}
	return user.ID, nil
}

// CheckOwnership reports whether the email's account is the given owner.
// An unknown email is simply not the owner; resolution failures never
// surface as errors here.
func (s *TokenService) CheckOwnership(ctx context.Context, email, ownerID string) bool {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return false
	}
	return user.ID == ownerID
}

// --- Helpers ---

// issueToken signs a token for the user and persists the active row.
func (s *TokenService) issueToken(ctx context.Context, user *domain.User, description string) (string, error) {
	signed, err := s.signer.Sign(user.Email)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	now := time.Now().UTC()
	token := &domain.Token{
		Token:       signed,
		UserID:      user.ID,
		Email:       user.Email,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		LastUsedAt:  now,
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	return signed, nil
}

// prefix truncates a token for logs and events.
func prefix(token string) string {
	if len(token) > tokenPrefixLen {
		return token[:tokenPrefixLen] + "..."
	}
	return token
}
