package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		original_filename TEXT NOT NULL,
		media_url TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		file_size BIGINT,
		content_type TEXT,
		email TEXT,
		transcript TEXT,
		transcript_with_speakers TEXT,
		duration DOUBLE PRECISION,
		summary TEXT,
		action_items JSONB,
		decisions JSONB,
		visual_summary_url TEXT,
		status TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'analyzing', 'completed', 'failed')),
		processing_error TEXT,
		created TIMESTAMPTZ NOT NULL,
		updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings (created DESC)`,
	`CREATE TABLE IF NOT EXISTS email_lock (
		id TEXT NOT NULL,
		key TEXT NOT NULL,
		value INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS gue_jobs (
		job_id TEXT NOT NULL PRIMARY KEY,
		priority SMALLINT NOT NULL,
		run_at TIMESTAMPTZ NOT NULL,
		job_type TEXT NOT NULL,
		args BYTEA NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		queue TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gue_jobs_selector ON gue_jobs (queue, run_at, priority)`,
}

// Migrate creates tables if they do not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("can't run migration %d: %w", i, err)
		}
	}
	goapp.Log.Info().Int("statements", len(migrationStatements)).Msg("migration done")
	return nil
}
