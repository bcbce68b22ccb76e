package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pollpick/internal/model"
)

const installationColumns = `id, installation_id, user_id, device_token, device_type, push_type,
	push_version, channels, badge, latitude, longitude, created_at, updated_at`

type installationRepository struct {
	db *sqlx.DB
}

func NewInstallationRepository(db *sqlx.DB) InstallationRepository {
	return &installationRepository{db: db}
}

// Upsert creates or updates an installation by its client id.
// A device that changes hands is reassigned to the new user; the badge survives.
func (r *installationRepository) Upsert(ctx context.Context, inst *model.Installation) error {
	if inst.Channels == nil {
		inst.Channels = pq.StringArray{}
	}

	query := `
		INSERT INTO installations (installation_id, user_id, device_token, device_type, push_type,
			push_version, channels, latitude, longitude, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (installation_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_token = EXCLUDED.device_token,
			device_type = EXCLUDED.device_type,
			push_type = EXCLUDED.push_type,
			push_version = EXCLUDED.push_version,
			channels = EXCLUDED.channels,
			latitude = COALESCE(EXCLUDED.latitude, installations.latitude),
			longitude = COALESCE(EXCLUDED.longitude, installations.longitude),
			updated_at = NOW()
		RETURNING id, badge, latitude, longitude, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		inst.InstallationID, inst.UserID, inst.DeviceToken, inst.DeviceType, inst.PushType,
		inst.PushVersion, inst.Channels, inst.Latitude, inst.Longitude,
	).Scan(&inst.ID, &inst.Badge, &inst.Latitude, &inst.Longitude, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert installation: %w", err)
	}
	return nil
}

func (r *installationRepository) Delete(ctx context.Context, installationID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM installations WHERE installation_id = $1`, installationID)
	if err != nil {
		return fmt.Errorf("delete installation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete installation: %w", err)
	}
	if rows == 0 {
		return model.ErrInstallationNotFound
	}
	return nil
}

func (r *installationRepository) FindByUsers(ctx context.Context, userIDs []int64, minPushVersion int) ([]model.Installation, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + installationColumns + `
		FROM installations
		WHERE user_id = ANY($1) AND push_version >= $2
	`
	var out []model.Installation
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(userIDs), minPushVersion); err != nil {
		return nil, fmt.Errorf("find installations by users: %w", err)
	}
	return out, nil
}

func (r *installationRepository) FindByChannel(ctx context.Context, channel string, minPushVersion int) ([]model.Installation, error) {
	query := `
		SELECT ` + installationColumns + `
		FROM installations
		WHERE $1 = ANY(channels) AND push_version >= $2
	`
	var out []model.Installation
	if err := r.db.SelectContext(ctx, &out, query, channel, minPushVersion); err != nil {
		return nil, fmt.Errorf("find installations by channel: %w", err)
	}
	return out, nil
}

func (r *installationRepository) IncrementBadges(ctx context.Context, ids []int64) (map[int64]int, error) {
	badges := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return badges, nil
	}

	query := `UPDATE installations SET badge = badge + 1 WHERE id = ANY($1) RETURNING id, badge`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("increment badges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var badge int
		if err := rows.Scan(&id, &badge); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges[id] = badge
	}
	return badges, rows.Err()
}

func (r *installationRepository) ListLocations(ctx context.Context, limit int) ([]model.InstallationLocation, error) {
	query := `
		SELECT latitude, longitude
		FROM installations
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT $1
	`
	locations := []model.InstallationLocation{}
	if err := r.db.SelectContext(ctx, &locations, query, limit); err != nil {
		return nil, fmt.Errorf("list installation locations: %w", err)
	}
	return locations, nil
}
