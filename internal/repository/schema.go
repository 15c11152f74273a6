package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the relational tables if they do not exist.
// Run once at startup before any repository is used.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			profile_pic_ref TEXT,
			profile_thumb_ref TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id BIGSERIAL PRIMARY KEY,
			requester_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'accepted', 'declined')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (requester_id <> receiver_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_receiver
			ON friend_requests (receiver_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_requester
			ON friend_requests (requester_id, status)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
