package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

const pollColumns = `id, created_by, left_photo_id, right_photo_id, caption, user_ids, hidden,
	vote_total_count, vote1_count, vote2_count, version, created_at, updated_at`

type pollRepository struct {
	db *sqlx.DB
}

func NewPollRepository(db *sqlx.DB) PollRepository {
	return &pollRepository{db: db}
}

func (r *pollRepository) Create(ctx context.Context, tx *sqlx.Tx, p *model.Poll) error {
	query := `
		INSERT INTO polls (created_by, left_photo_id, right_photo_id, caption, user_ids, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, hidden, vote_total_count, vote1_count, vote2_count, created_at, updated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		p.CreatedBy, p.LeftPhotoID, p.RightPhotoID, p.Caption, p.UserIDs, p.Version,
	).Scan(&p.ID, &p.Hidden, &p.VoteTotalCount, &p.Vote1Count, &p.Vote2Count, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (r *pollRepository) GetByID(ctx context.Context, id int64) (*model.Poll, error) {
	var p model.Poll
	err := r.db.GetContext(ctx, &p, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return &p, nil
}

// ApplyVote always counts the vote in the total; 1 and 2 also bump their side.
func (r *pollRepository) ApplyVote(ctx context.Context, tx *sqlx.Tx, pollID int64, vote int) (*model.Poll, error) {
	query := `
		UPDATE polls SET
			vote_total_count = vote_total_count + 1,
			vote1_count = vote1_count + CASE WHEN $2::int = 1 THEN 1 ELSE 0 END,
			vote2_count = vote2_count + CASE WHEN $2::int = 2 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + pollColumns

	var p model.Poll
	err := tx.GetContext(ctx, &p, query, pollID, vote)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to apply vote: %w", err)
	}
	return &p, nil
}

func (r *pollRepository) SetHidden(ctx context.Context, tx *sqlx.Tx, pollID int64) error {
	result, err := tx.ExecContext(ctx, `UPDATE polls SET hidden = TRUE, updated_at = NOW() WHERE id = $1`, pollID)
	if err != nil {
		return fmt.Errorf("failed to hide poll: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPollNotFound
	}
	return nil
}

// Feed lists polls the viewer can see and has not answered yet, newest first.
func (r *pollRepository) Feed(ctx context.Context, viewerID int64, limit int) ([]model.Poll, error) {
	query := `
		SELECT ` + pollColumns + `
		FROM polls p
		WHERE p.hidden = FALSE
			AND p.created_by <> $1
			AND (p.user_ids IS NULL OR cardinality(p.user_ids) = 0 OR $1 = ANY(p.user_ids))
			AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.poll_id = p.id AND v.vote_by = $1)
		ORDER BY p.created_at DESC
		LIMIT $2
	`
	polls := []model.Poll{}
	if err := r.db.SelectContext(ctx, &polls, query, viewerID, limit); err != nil {
		return nil, fmt.Errorf("failed to get poll feed: %w", err)
	}
	return polls, nil
}
