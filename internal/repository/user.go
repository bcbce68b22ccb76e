package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pollpick/internal/model"
	"pollpick/internal/profile"
)

const userColumns = `id, username, password_hashed, email, email_verified, email_verify_token,
	name, location, gender, auth_data, facebook_id, search, display_name, admin, finished_voting,
	following_count, follower_count, friend_count, created_at, updated_at`

const pqUniqueViolation = "23505"

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create normalizes and inserts a new user, filling ID, counters and timestamps.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	profile.Normalize(u)

	query := `
		INSERT INTO users (username, password_hashed, email, email_verified, email_verify_token,
			name, location, gender, auth_data, facebook_id, search, display_name, admin, finished_voting)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, following_count, follower_count, friend_count, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.Username, u.PasswordHashed, u.Email, u.EmailVerified, u.EmailVerifyToken,
		u.Name, u.Location, u.Gender, u.AuthData, u.FacebookID, u.Search, u.DisplayName,
		u.Admin, u.FinishedVoting,
	).Scan(&u.ID, &u.FollowingCount, &u.FollowerCount, &u.FriendCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Update normalizes and saves every profile column. Counters are left alone;
// they only change through AdjustCounters.
func (r *userRepository) Update(ctx context.Context, u *model.User) error {
	return updateUser(ctx, r.db, u)
}

// Modify applies fn to the current row under a row lock and saves it when fn
// reports a change. Writers holding an older copy cannot be overwritten.
func (r *userRepository) Modify(ctx context.Context, id int64, fn func(u *model.User) bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin modify: %w", err)
	}
	defer tx.Rollback()

	u, err := lockUser(ctx, tx, id)
	if err != nil {
		return err
	}
	if !fn(u) {
		return nil
	}
	if err := updateUser(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit()
}

func updateUser(ctx context.Context, q sqlx.QueryerContext, u *model.User) error {
	profile.Normalize(u)

	query := `
		UPDATE users SET
			username = $2, password_hashed = $3, email = $4, email_verified = $5,
			email_verify_token = $6, name = $7, location = $8, gender = $9, auth_data = $10,
			facebook_id = $11, search = $12, display_name = $13, finished_voting = $14,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := q.QueryRowxContext(ctx, query,
		u.ID, u.Username, u.PasswordHashed, u.Email, u.EmailVerified,
		u.EmailVerifyToken, u.Name, u.Location, u.Gender, u.AuthData,
		u.FacebookID, u.Search, u.DisplayName, u.FinishedVoting,
	).Scan(&u.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrUserNotFound
		case isUniqueViolation(err):
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

func lockUser(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error) {
	var u model.User
	err := tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &u, nil
}

// RefreshDerived re-reads the user under a row lock, runs the normalizer and
// writes back only search, display_name and facebook_id, so concurrent
// profile edits are never overwritten.
func (r *userRepository) RefreshDerived(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin refresh: %w", err)
	}
	defer tx.Rollback()

	u, err := lockUser(ctx, tx, id)
	if err != nil {
		return err
	}

	profile.Normalize(u)
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET search = $2, display_name = $3, facebook_id = $4 WHERE id = $1`,
		u.ID, u.Search, u.DisplayName, u.FacebookID)
	if err != nil {
		return fmt.Errorf("failed to write derived fields: %w", err)
	}
	return tx.Commit()
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *userRepository) GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error) {
	return r.getOne(ctx, "facebook_id = $1", facebookID)
}

func (r *userRepository) GetByVerifyToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx, "email_verify_token = $1", token)
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	var u model.User
	err := r.db.GetContext(ctx, &u, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

// LockPair takes row locks on both users in id order, serializing follow
// graph changes between the same two users.
func (r *userRepository) LockPair(ctx context.Context, tx *sqlx.Tx, a, b int64) error {
	var ids []int64
	query := `SELECT id FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &ids, query, a, b); err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}
	return nil
}

func (r *userRepository) AdjustCounters(ctx context.Context, tx *sqlx.Tx, userID int64, delta model.CounterDelta) error {
	query := `
		UPDATE users SET
			following_count = GREATEST(following_count + $2, 0),
			follower_count = GREATEST(follower_count + $3, 0),
			friend_count = GREATEST(friend_count + $4, 0),
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, userID, delta.Following, delta.Followers, delta.Friends)
	if err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Search matches users whose search key contains foldedQuery.
func (r *userRepository) Search(ctx context.Context, foldedQuery string, excludeID int64, limit int) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE search LIKE $1 ESCAPE '\' AND id <> $2
		ORDER BY follower_count DESC, id
		LIMIT $3
	`

	users := []model.User{}
	err := r.db.SelectContext(ctx, &users, query, "%"+escapeLike(foldedQuery)+"%", excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

func (r *userRepository) Trending(ctx context.Context, excludeID int64, limit int) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE search IS NOT NULL AND id <> $1
		ORDER BY follower_count DESC, id
		LIMIT $2
	`

	users := []model.User{}
	if err := r.db.SelectContext(ctx, &users, query, excludeID, limit); err != nil {
		return nil, fmt.Errorf("failed to list trending users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListWithoutSearch(ctx context.Context, afterID int64, limit int) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE search IS NULL AND auth_data->'anonymous' IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`

	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list users without search key: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListWithIncompleteFacebookProfile(ctx context.Context, afterID int64, limit int) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE facebook_id IS NOT NULL
			AND (name IS NULL OR name = '' OR email IS NULL OR gender IS NULL)
			AND id > $1
		ORDER BY id
		LIMIT $2
	`

	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list facebook users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
