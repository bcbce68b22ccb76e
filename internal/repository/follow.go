package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the edge. It returns false when the pair already exists, which
// is how a concurrent duplicate follow is detected.
func (r *followRepository) Create(ctx context.Context, tx *sqlx.Tx, f *model.Follow) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, user_id, mutual)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, user_id) DO NOTHING
		RETURNING id, created_at
	`
	err := tx.QueryRowxContext(ctx, query, f.FollowerID, f.UserID, f.Mutual).Scan(&f.ID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}
	return true, nil
}

func (r *followRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, followerID, userID int64) (*model.Follow, error) {
	query := `
		SELECT id, follower_id, user_id, mutual, created_at
		FROM follows
		WHERE follower_id = $1 AND user_id = $2
		FOR UPDATE
	`
	var f model.Follow
	err := tx.GetContext(ctx, &f, query, followerID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get follow: %w", err)
	}
	return &f, nil
}

func (r *followRepository) SetMutual(ctx context.Context, tx *sqlx.Tx, followerID, userID int64, mutual bool) error {
	query := `UPDATE follows SET mutual = $3 WHERE follower_id = $1 AND user_id = $2`
	if _, err := tx.ExecContext(ctx, query, followerID, userID, mutual); err != nil {
		return fmt.Errorf("failed to set mutual flag: %w", err)
	}
	return nil
}

func (r *followRepository) Delete(ctx context.Context, tx *sqlx.Tx, followID int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE id = $1`, followID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}

	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND user_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, followerID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}
