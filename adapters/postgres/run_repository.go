// Package postgres stores analysis run history through sqlx. Queries use
// bind-var rebinding so the same repository serves postgres and sqlite.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"statwizard/domain/core"
	"statwizard/models"
)

// RunRepository persists AnalysisRun rows
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, session_id, analysis_id, dataset_id, dataset_name, request_json,
	status, error_code, error_message, results_json, duration_ms, created_at`

// SaveRun inserts a run
func (r *RunRepository) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO analysis_runs (` + runColumns + `)
		VALUES (:id, :session_id, :analysis_id, :dataset_id, :dataset_name, :request_json,
			:status, :error_code, :error_message, :results_json, :duration_ms, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM analysis_runs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListSessionRuns returns the latest runs for a browser session
func (r *RunRepository) ListSessionRuns(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM analysis_runs
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	var runs []*models.AnalysisRun
	if err := r.db.SelectContext(ctx, &runs, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// StatsBySession aggregates outcomes per analysis
func (r *RunRepository) StatsBySession(ctx context.Context, sessionID string) ([]models.RunStats, error) {
	query := r.db.Rebind(`
		SELECT analysis_id,
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END) AS succeeded,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed
		FROM analysis_runs
		WHERE session_id = ?
		GROUP BY analysis_id
		ORDER BY analysis_id`)

	var stats []models.RunStats
	if err := r.db.SelectContext(ctx, &stats, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}
	return stats, nil
}

// DeleteBefore removes runs created before cutoff
func (r *RunRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM analysis_runs WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
