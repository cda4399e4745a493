package repository

import (
	"context"
	"fmt"
	"strings"
)

var postgresMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		unique_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		state TEXT NOT NULL,
		host_id TEXT NOT NULL,
		record JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_live ON sessions (state) WHERE state IN ('running', 'stopping')`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_host ON sessions (host_id)`,
	`CREATE TABLE IF NOT EXISTS user_reputations (
		user_id TEXT PRIMARY KEY,
		recommendation_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_recommendation_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_recommendation_score_update TIMESTAMPTZ,
		last_ping_at TIMESTAMPTZ
	)`,
}

var sqliteMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		unique_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		state TEXT NOT NULL,
		host_id TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions (state)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_host ON sessions (host_id)`,
	`CREATE TABLE IF NOT EXISTS user_reputations (
		user_id TEXT PRIMARY KEY,
		recommendation_score REAL NOT NULL DEFAULT 0,
		total_recommendation_score REAL NOT NULL DEFAULT 0,
		last_recommendation_score_update TEXT,
		last_ping_at TEXT
	)`,
}

// statementExecer runs a single DDL statement.
type statementExecer func(ctx context.Context, stmt string) error

func runMigration(ctx context.Context, statements []string, exec statementExecer) error {
	for i, s := range statements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}
