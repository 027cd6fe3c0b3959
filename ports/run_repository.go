package ports

import (
	"context"
	"time"

	"statwizard/models"
)

// RunRepository defines the interface for analysis run history
type RunRepository interface {
	// SaveRun records a completed run
	SaveRun(ctx context.Context, run *models.AnalysisRun) error

	// GetRun retrieves one run by ID
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)

	// ListSessionRuns returns the latest runs of a browser session, newest first
	ListSessionRuns(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRun, error)

	// StatsBySession aggregates run outcomes per analysis
	StatsBySession(ctx context.Context, sessionID string) ([]models.RunStats, error)

	// DeleteBefore prunes history and returns the number of rows removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
