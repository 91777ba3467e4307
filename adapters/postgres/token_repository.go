package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"investorradar/domain/core"
	"investorradar/models"
	"investorradar/ports"
)

// tokenRepository implements the TokenRepository interface
type tokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sqlx.DB) ports.TokenRepository {
	return &tokenRepository{db: db}
}

// Save inserts a freshly minted token
func (r *tokenRepository) Save(ctx context.Context, token *models.APIToken) error {
	query := `INSERT INTO api_tokens (id, user_id, digest, label, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Digest, token.Label,
		token.ExpiresAt, token.LastUsedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// FindByDigest looks up a token by digest. Expired tokens resolve to
// core.ErrTokenExpired so callers can distinguish them from unknown ones.
func (r *tokenRepository) FindByDigest(ctx context.Context, digest string) (*models.APIToken, error) {
	query := `SELECT id, user_id, digest, label, expires_at, last_used_at, created_at
		FROM api_tokens WHERE digest = $1`

	var token models.APIToken
	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&token.ID, &token.UserID, &token.Digest, &token.Label,
		&token.ExpiresAt, &token.LastUsedAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("token: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	if token.Expired() {
		return nil, core.ErrTokenExpired
	}
	return &token, nil
}

// TouchLastUsed stamps the last-seen time of a token
func (r *tokenRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch token: %w", err)
	}
	return nil
}

// Revoke deletes the token with the given digest
func (r *tokenRepository) Revoke(ctx context.Context, digest string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE digest = $1`, digest)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// DeleteExpired prunes tokens past their expiry
func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tokens: %w", err)
	}
	return result.RowsAffected()
}
