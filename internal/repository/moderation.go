package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

type reportRepository struct{}

func NewReportRepository() ReportRepository {
	return &reportRepository{}
}

func (r *reportRepository) Create(ctx context.Context, tx *sqlx.Tx, rep *model.Report) error {
	query := `
		INSERT INTO reports (user_id, poll_id, comment)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query, rep.UserID, rep.PollID, rep.Comment).Scan(&rep.ID, &rep.CreatedAt); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

type blockRepository struct {
	db *sqlx.DB
}

func NewBlockRepository(db *sqlx.DB) BlockRepository {
	return &blockRepository{db: db}
}

// Create stores the block as given. The blocked user is not looked up.
func (r *blockRepository) Create(ctx context.Context, b *model.Block) error {
	query := `
		INSERT INTO blocks (user_id, blocked_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, b.UserID, b.BlockedID).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}
