package migration

import (
	"context"
	"fmt"
	"log"

	"statwizard/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

type step struct {
	version int
	name    string
	apply   func(ctx context.Context, db *sqlx.DB) error
}

// MigrationRunner applies the run history schema on postgres or sqlite
type MigrationRunner struct {
	steps []step
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	r := &MigrationRunner{}
	r.steps = []step{
		{1, "create analysis_runs", r.createAnalysisRunsTable},
		{2, "index analysis_runs", r.createIndexes},
	}
	return r
}

// Version returns the latest schema version
func (r *MigrationRunner) Version() string {
	return fmt.Sprintf("%d", r.steps[len(r.steps)-1].version)
}

// Run executes pending migrations in order. Applied versions are recorded in
// schema_migrations so a second run is a no-op.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createMigrationsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return errors.Wrap(err, "failed to read applied migrations")
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, s := range r.steps {
		if done[s.version] {
			continue
		}
		if err := s.apply(ctx, db); err != nil {
			return errors.Wrapf(err, "migration %d (%s) failed", s.version, s.name)
		}
		if _, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`), s.version, s.name); err != nil {
			return errors.Wrapf(err, "failed to record migration %d", s.version)
		}
		log.Printf("[Migration] applied %d: %s", s.version, s.name)
	}
	return nil
}

func (r *MigrationRunner) createMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	timestamp := "TIMESTAMP"
	if db.DriverName() == "postgres" {
		timestamp = "TIMESTAMP WITH TIME ZONE"
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id VARCHAR(36) PRIMARY KEY,
			session_id VARCHAR(36) NOT NULL,
			analysis_id VARCHAR(64) NOT NULL,
			dataset_id VARCHAR(36) NOT NULL,
			dataset_name TEXT NOT NULL DEFAULT '',
			request_json TEXT NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL,
			error_code VARCHAR(32) NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			results_json TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at %s NOT NULL
		)
	`, timestamp))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_session ON analysis_runs(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_analysis ON analysis_runs(analysis_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
