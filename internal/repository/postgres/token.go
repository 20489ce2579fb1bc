package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/authcore/internal/domain"
	"github.com/utafrali/authcore/pkg/database"
	apperrors "github.com/utafrali/authcore/pkg/errors"
)

// TokenRepository implements repository.TokenRepository using PostgreSQL.
// Token rows are append-and-update only; nothing here issues a DELETE.
type TokenRepository struct {
	db database.DBTX
}

// NewTokenRepository creates a new PostgreSQL-backed token repository.
func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a new token row.
func (r *TokenRepository) Create(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (token, user_id, email, description, is_active, created_at, last_used_at, revoked_at, rotated_from, rotated_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		t.Token,
		t.UserID,
		t.Email,
		t.Description,
		t.IsActive,
		t.CreatedAt,
		t.LastUsedAt,
		t.RevokedAt,
		t.RotatedFrom,
		t.RotatedTo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("token", "token", truncate(t.Token))
		}
		return fmt.Errorf("insert token: %w", err)
	}

	return nil
}

// GetByToken retrieves a token row by its exact token string.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*domain.Token, error) {
	query := `
		SELECT token, user_id, email, description, is_active, created_at, last_used_at, revoked_at, rotated_from, rotated_to
		FROM tokens
		WHERE token = $1`

	var t domain.Token
	err := r.db.QueryRow(ctx, query, token).Scan(
		&t.Token,
		&t.UserID,
		&t.Email,
		&t.Description,
		&t.IsActive,
		&t.CreatedAt,
		&t.LastUsedAt,
		&t.RevokedAt,
		&t.RotatedFrom,
		&t.RotatedTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &t, nil
}

// Touch updates last_used_at for an active token. The WHERE clause makes the
// liveness check and the timestamp write one statement: a revoked or unknown
// token affects zero rows and Touch reports false.
func (r *TokenRepository) Touch(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `UPDATE tokens SET last_used_at = $1 WHERE token = $2 AND is_active`

	ct, err := r.db.Exec(ctx, query, now, token)
	if err != nil {
		return false, fmt.Errorf("touch token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// Claim deactivates an active token and reports whether this caller won. The
// conditional UPDATE is the compare-and-swap that serializes concurrent
// rotations of the same token: the row predicate only matches while the token
// is active, so exactly one of any number of racing claims affects a row.
func (r *TokenRepository) Claim(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `UPDATE tokens SET is_active = false, revoked_at = $1 WHERE token = $2 AND is_active`

	ct, err := r.db.Exec(ctx, query, now, token)
	if err != nil {
		return false, fmt.Errorf("claim token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// Revoke deactivates a token unconditionally. Safe to repeat; revoking an
// unknown token affects zero rows and is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string, now time.Time) error {
	query := `UPDATE tokens SET is_active = false, revoked_at = $1 WHERE token = $2 AND is_active`

	if _, err := r.db.Exec(ctx, query, now, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// RevokeAllByUserID deactivates every active token for the user and returns
// the revoked count.
func (r *TokenRepository) RevokeAllByUserID(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `UPDATE tokens SET is_active = false, revoked_at = $1 WHERE user_id = $2 AND is_active`

	ct, err := r.db.Exec(ctx, query, now, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens by user: %w", err)
	}

	return ct.RowsAffected(), nil
}

// LinkRotation records the lineage between a retired token and its
// replacement. Both sides are written in one transaction; a crash between
// claim and link leaves the chain one-sided, which readers tolerate.
func (r *TokenRepository) LinkRotation(ctx context.Context, oldToken, newToken string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE tokens SET rotated_to = $1 WHERE token = $2`,
		newToken, oldToken,
	); err != nil {
		return fmt.Errorf("link rotated_to: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tokens SET rotated_from = $1 WHERE token = $2`,
		oldToken, newToken,
	); err != nil {
		return fmt.Errorf("link rotated_from: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListActiveByUserID returns the user's active tokens, newest first.
func (r *TokenRepository) ListActiveByUserID(ctx context.Context, userID string) ([]domain.Token, error) {
	query := `
		SELECT token, user_id, email, description, is_active, created_at, last_used_at, revoked_at, rotated_from, rotated_to
		FROM tokens
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(
			&t.Token,
			&t.UserID,
			&t.Email,
			&t.Description,
			&t.IsActive,
			&t.CreatedAt,
			&t.LastUsedAt,
			&t.RevokedAt,
			&t.RotatedFrom,
			&t.RotatedTo,
		); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	if tokens == nil {
		tokens = []domain.Token{}
	}

	return tokens, nil
}

// truncate shortens a token for error messages so full credentials never
// land in logs.
func truncate(token string) string {
	if len(token) > 12 {
		return token[:12] + "..."
	}
	return token
}
