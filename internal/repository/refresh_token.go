package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by, device_info, ip_address`

type refreshTokenRepository struct {
	db *sqlx.DB
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

const insertRefreshToken = `
	INSERT INTO refresh_tokens (user_id, token_hash, expires_at, device_info, ip_address)
	VALUES (:user_id, :token_hash, :expires_at, :device_info, :ip_address)
	RETURNING id, created_at`

// Create stores the token and fills in its generated id.
func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// Rotate stores next and revokes oldID in one transaction. If oldID was
// already revoked, by an earlier rotation or a concurrent one, nothing is
// stored and ErrRefreshTokenReused is returned.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback()

	if err := insertToken(ctx, tx, next); err != nil {
		return fmt.Errorf("failed to create rotated token: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2 WHERE id = $1 AND revoked_at IS NULL`,
		oldID, next.ID)
	if err != nil {
		return fmt.Errorf("failed to revoke rotated token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrRefreshTokenReused
	}
	return tx.Commit()
}

func insertToken(ctx context.Context, q sqlx.ExtContext, token *model.RefreshToken) error {
	query, args, err := sqlx.Named(insertRefreshToken, token)
	if err != nil {
		return err
	}
	return q.QueryRowxContext(ctx, q.Rebind(query), args...).Scan(&token.ID, &token.CreatedAt)
}

// FindByTokenHash looks a token up by the SHA-256 of its raw value.
func (r *refreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return &token, nil
}

// Revoke is a no-op for tokens that are already revoked.
func (r *refreshTokenRepository) Revoke(ctx context.Context, id string, replacedBy *string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, id, replacedBy); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser ends every session of the user.
func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID int64) error {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke all tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that expired more than olderThan ago.
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
