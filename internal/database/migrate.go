package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. Uniqueness of email, wallet address,
// registration token and the (session, voter) pair is enforced here with
// real constraints: concurrent writers must lose at the database, not at a
// pre-check.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash BYTEA NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			wallet_address TEXT NULL UNIQUE,
			is_registered BOOLEAN NOT NULL DEFAULT FALSE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			registration_token TEXT NULL UNIQUE,
			registration_token_expires TIMESTAMPTZ NULL,
			last_login TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS voting_sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			admin_id TEXT NOT NULL REFERENCES users(id),
			start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			end_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT voting_sessions_window CHECK (end_time > start_time)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_voting_sessions_admin_id ON voting_sessions(admin_id);`,
		`CREATE TABLE IF NOT EXISTS session_voters (
			session_id TEXT NOT NULL REFERENCES voting_sessions(id),
			voter_id TEXT NOT NULL REFERENCES users(id),
			has_voted BOOLEAN NOT NULL DEFAULT FALSE,
			voted_at TIMESTAMPTZ NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (session_id, voter_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_voters_voter_id ON session_voters(voter_id);`,
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES voting_sessions(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (session_id, name)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
