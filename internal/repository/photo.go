package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pollpick/internal/model"
)

type photoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) Create(ctx context.Context, p *model.Photo) error {
	query := `
		INSERT INTO photos (user_id, url, object_key, public)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, p.UserID, p.URL, p.ObjectKey, p.Public).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// MarkPublic makes the given photos world-readable. Unknown ids are ignored.
// A nil tx runs the update outside any transaction.
func (r *photoRepository) MarkPublic(ctx context.Context, tx *sqlx.Tx, photoIDs []int64) error {
	if len(photoIDs) == 0 {
		return nil
	}
	var exec sqlx.ExecerContext = r.db
	if tx != nil {
		exec = tx
	}
	_, err := exec.ExecContext(ctx, `UPDATE photos SET public = TRUE WHERE id = ANY($1)`, pq.Array(photoIDs))
	if err != nil {
		return fmt.Errorf("failed to mark photos public: %w", err)
	}
	return nil
}

func (r *photoRepository) ListPrivateInPublicPolls(ctx context.Context, afterID int64, limit int) ([]model.Photo, error) {
	query := `
		SELECT ph.id, ph.user_id, ph.url, ph.object_key, ph.public, ph.created_at
		FROM photos ph
		WHERE ph.public = FALSE
			AND ph.id > $1
			AND EXISTS (
				SELECT 1 FROM polls p
				WHERE (p.left_photo_id = ph.id OR p.right_photo_id = ph.id)
					AND (p.user_ids IS NULL OR cardinality(p.user_ids) = 0)
			)
		ORDER BY ph.id
		LIMIT $2
	`
	var photos []model.Photo
	if err := r.db.SelectContext(ctx, &photos, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list private photos: %w", err)
	}
	return photos, nil
}
