package wizard

import (
	"statwizard/domain/analysis"
	"statwizard/domain/core"
)

// Phase is the coarse state the UI renders.
type Phase string

const (
	PhaseEditing Phase = "editing"
	PhaseRunning Phase = "running"
	PhaseResults Phase = "results"
	PhaseFailed  Phase = "failed"
)

// State is a snapshot of the controller. It is a value: callers get a copy.
type State struct {
	CurrentStep    int
	MaxReachedStep int
	IsRunning      bool
	LastResult     *analysis.Result
	LastError      string
	DatasetID      core.DatasetID
}

func initialState(datasetID core.DatasetID) State {
	return State{CurrentStep: 1, MaxReachedStep: 1, DatasetID: datasetID}
}

// Navigable reports whether step k can be clicked.
func (s State) Navigable(k int) bool {
	return k >= 1 && k <= s.MaxReachedStep
}

// HasResult reports whether a result is held.
func (s State) HasResult() bool {
	return s.LastResult != nil
}

// CanRun reports whether the current step may trigger a run: the
// validation step, or a result step for "Run again".
func (s State) CanRun(cfg Config) bool {
	return s.CurrentStep == cfg.RunStep || s.CurrentStep >= cfg.SummaryStep
}

// Phase classifies the state for rendering. A failed run is reported as
// failed wherever it was triggered from.
func (s State) Phase(cfg Config) Phase {
	switch {
	case s.IsRunning:
		return PhaseRunning
	case s.LastError != "":
		return PhaseFailed
	case s.CurrentStep >= cfg.SummaryStep:
		return PhaseResults
	default:
		return PhaseEditing
	}
}
