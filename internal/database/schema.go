package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hashed TEXT,
		email TEXT,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		email_verify_token TEXT,
		name TEXT,
		location TEXT,
		gender TEXT,
		auth_data JSONB NOT NULL DEFAULT '{}'::jsonb,
		facebook_id TEXT,
		search TEXT,
		display_name TEXT,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		finished_voting BOOLEAN NOT NULL DEFAULT FALSE,
		following_count INTEGER NOT NULL DEFAULT 0 CHECK (following_count >= 0),
		follower_count INTEGER NOT NULL DEFAULT 0 CHECK (follower_count >= 0),
		friend_count INTEGER NOT NULL DEFAULT 0 CHECK (friend_count >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_facebook_id ON users(facebook_id) WHERE facebook_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_email_verify_token ON users(email_verify_token) WHERE email_verify_token IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_follower_count ON users(follower_count DESC) WHERE search IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS follows (
		id BIGSERIAL PRIMARY KEY,
		follower_id BIGINT NOT NULL REFERENCES users(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		mutual BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (follower_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_follows_user_id ON follows(user_id)`,

	`CREATE TABLE IF NOT EXISTS photos (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		url TEXT NOT NULL,
		object_key TEXT NOT NULL,
		public BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS polls (
		id BIGSERIAL PRIMARY KEY,
		created_by BIGINT NOT NULL REFERENCES users(id),
		left_photo_id BIGINT NOT NULL,
		right_photo_id BIGINT NOT NULL,
		caption TEXT,
		user_ids BIGINT[],
		hidden BOOLEAN NOT NULL DEFAULT FALSE,
		vote_total_count INTEGER NOT NULL DEFAULT 0,
		vote1_count INTEGER NOT NULL DEFAULT 0,
		vote2_count INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 2,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls(created_at DESC) WHERE hidden = FALSE`,

	`CREATE TABLE IF NOT EXISTS votes (
		id BIGSERIAL PRIMARY KEY,
		vote_by BIGINT NOT NULL REFERENCES users(id),
		poll_id BIGINT NOT NULL REFERENCES polls(id),
		vote SMALLINT NOT NULL CHECK (vote BETWEEN 0 AND 2),
		version INTEGER NOT NULL DEFAULT 3,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (vote_by, poll_id)
	)`,

	`CREATE TABLE IF NOT EXISTS reports (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		poll_id BIGINT NOT NULL REFERENCES polls(id),
		comment TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS blocks (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		blocked_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS installations (
		id BIGSERIAL PRIMARY KEY,
		installation_id TEXT NOT NULL UNIQUE,
		user_id BIGINT REFERENCES users(id),
		device_token TEXT NOT NULL,
		device_type TEXT NOT NULL,
		push_type TEXT NOT NULL,
		push_version INTEGER NOT NULL DEFAULT 0,
		channels TEXT[] NOT NULL DEFAULT '{}',
		badge INTEGER NOT NULL DEFAULT 0,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_installations_user_id ON installations(user_id)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id BIGINT NOT NULL REFERENCES users(id),
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked_at TIMESTAMPTZ,
		replaced_by UUID,
		device_info TEXT,
		ip_address TEXT
	)`,
}

// EnsureSchema creates every table and index that does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
