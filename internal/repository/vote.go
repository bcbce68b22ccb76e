package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

type voteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Create returns false when the voter already has a vote on the poll.
func (r *voteRepository) Create(ctx context.Context, tx *sqlx.Tx, v *model.Vote) (bool, error) {
	query := `
		INSERT INTO votes (vote_by, poll_id, vote, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vote_by, poll_id) DO NOTHING
		RETURNING id, created_at
	`
	err := tx.QueryRowxContext(ctx, query, v.VoteBy, v.PollID, v.Vote, v.Version).Scan(&v.ID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create vote: %w", err)
	}
	return true, nil
}
