package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE session_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		source_key TEXT NOT NULL,
		engine TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status session_status NOT NULL DEFAULT 'running',
		stop_reason TEXT NOT NULL DEFAULT '',
		samples_captured BIGINT NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		segment_count INTEGER NOT NULL DEFAULT 0,
		failed_chunks INTEGER NOT NULL DEFAULT 0,
		dropped_chunks INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_running ON sessions (source_key) WHERE status = 'running'`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
