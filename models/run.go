package models

import (
	"fmt"
	"time"
)

// RunStatus is the outcome of one analysis run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunDiscarded RunStatus = "discarded" // response arrived after the inputs changed
)

// AnalysisRun is one recorded call to the statistics service
type AnalysisRun struct {
	ID          string    `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	AnalysisID  string    `json:"analysis_id" db:"analysis_id"`
	DatasetID   string    `json:"dataset_id" db:"dataset_id"`
	DatasetName string    `json:"dataset_name" db:"dataset_name"`
	Request     string    `json:"request" db:"request_json"`
	Status      RunStatus `json:"status" db:"status"`
	ErrorCode   string    `json:"error_code,omitempty" db:"error_code"`
	Error       string    `json:"error,omitempty" db:"error_message"`
	Results     string    `json:"results,omitempty" db:"results_json"`
	DurationMs  int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the fields the history page relies on
func (r *AnalysisRun) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("run id is required")
	case r.SessionID == "":
		return fmt.Errorf("session id is required")
	case r.AnalysisID == "":
		return fmt.Errorf("analysis id is required")
	}
	switch r.Status {
	case RunSucceeded, RunFailed, RunDiscarded:
	default:
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	if r.Status == RunSucceeded && r.Error != "" {
		return fmt.Errorf("successful run cannot carry an error")
	}
	return nil
}

// Duration returns the run time
func (r *AnalysisRun) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// RunStats aggregates runs per analysis for the history page
type RunStats struct {
	AnalysisID string `json:"analysis_id" db:"analysis_id"`
	Total      int    `json:"total" db:"total"`
	Succeeded  int    `json:"succeeded" db:"succeeded"`
	Failed     int    `json:"failed" db:"failed"`
}
