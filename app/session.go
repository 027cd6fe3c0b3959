package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/internal/errors"
	"statwizard/internal/validation"
	"statwizard/internal/wizard"
)

// AnalysisSession hosts one wizard: the dataset it works on, the current
// selections and the controller. It is the controller's Planner.
type AnalysisSession struct {
	sessionID core.SessionID
	def       *analysis.Definition
	rules     *validation.RuleSet
	ctrl      *wizard.Controller

	mu       sync.RWMutex
	ds       *dataset.Dataset
	sel      analysis.Selections
	lastUsed time.Time
}

// NewAnalysisSession mounts a wizard on a non-empty dataset with default selections.
func NewAnalysisSession(sessionID core.SessionID, def *analysis.Definition, policy *validation.Policy, client wizard.Client, ds *dataset.Dataset, observers ...wizard.Observer) (*AnalysisSession, error) {
	if ds == nil || ds.RowCount() == 0 {
		return nil, core.ErrEmptyDataset
	}
	s := &AnalysisSession{
		sessionID: sessionID,
		def:       def,
		rules:     validation.NewRuleSet(def, policy.For(def)),
		ds:        ds,
		sel:       def.Defaults(ds),
		lastUsed:  time.Now(),
	}
	ctrl, err := wizard.New(fmt.Sprintf("%s/%s", core.ID(sessionID).Short(), def.ID), wizard.ConfigFor(def), ds.ID, s, client, observers...)
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// Definition returns the analysis being configured.
func (s *AnalysisSession) Definition() *analysis.Definition { return s.def }

// Controller exposes the wizard state machine.
func (s *AnalysisSession) Controller() *wizard.Controller { return s.ctrl }

// SessionID returns the owning browser session.
func (s *AnalysisSession) SessionID() core.SessionID { return s.sessionID }

// Dataset returns the current dataset.
func (s *AnalysisSession) Dataset() *dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Selections returns a copy of the current selections.
func (s *AnalysisSession) Selections() analysis.Selections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel.Clone()
}

// LoadDataset swaps the dataset. A new identity resets the wizard and
// re-derives default selections.
func (s *AnalysisSession) LoadDataset(ds *dataset.Dataset) error {
	if ds == nil || ds.RowCount() == 0 {
		return core.ErrEmptyDataset
	}
	s.mu.Lock()
	if s.ds != nil && s.ds.ID == ds.ID {
		s.mu.Unlock()
		return nil
	}
	s.ds = ds
	s.sel = s.def.Defaults(ds)
	s.lastUsed = time.Now()
	s.mu.Unlock()

	s.ctrl.SetDataset(ds.ID)
	return nil
}

// Select replaces the values of one field. No values clears it. A change
// invalidates any held result; an unchanged value is a no-op.
func (s *AnalysisSession) Select(key string, values ...string) error {
	if _, ok := s.def.Field(key); !ok {
		return errors.InvalidInput(fmt.Sprintf("unknown field %q for %s", key, s.def.Title))
	}
	s.mu.Lock()
	next := s.sel.Clone()
	next.Set(key, values...)
	if next.Equal(s.sel) {
		s.mu.Unlock()
		return nil
	}
	s.sel = next
	s.lastUsed = time.Now()
	s.mu.Unlock()

	s.ctrl.InvalidateResult()
	return nil
}

// ResetSelections restores the defaults for the current dataset.
func (s *AnalysisSession) ResetSelections() {
	s.mu.Lock()
	s.sel = s.def.Defaults(s.ds)
	s.mu.Unlock()
	s.ctrl.InvalidateResult()
}

func (s *AnalysisSession) input() analysis.Input {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def.NewInput(s.ds, s.sel.Clone())
}

// Checks evaluates the validation rules for the current inputs.
func (s *AnalysisSession) Checks() []analysis.Check {
	return s.rules.Evaluate(s.input())
}

// Request builds the request body for the current inputs.
func (s *AnalysisSession) Request() (analysis.Request, error) {
	return s.def.BuildRequest(s.input())
}

// Candidates lists the columns a column field may choose from.
func (s *AnalysisSession) Candidates(key string) []string {
	return s.def.Candidates(key, s.input())
}

// Next advances the wizard, running the analysis at the validation step.
func (s *AnalysisSession) Next(ctx context.Context) (wizard.State, error) {
	s.touch()
	return s.ctrl.NextStep(ctx)
}

// Prev moves the wizard back one step.
func (s *AnalysisSession) Prev() (wizard.State, error) {
	s.touch()
	return s.ctrl.PrevStep()
}

// GoTo jumps to a reached step.
func (s *AnalysisSession) GoTo(step int) (wizard.State, error) {
	s.touch()
	return s.ctrl.GoToStep(step)
}

// Run reruns the analysis from wherever the wizard is.
func (s *AnalysisSession) Run(ctx context.Context) (wizard.State, error) {
	s.touch()
	return s.ctrl.Run(ctx)
}

// Close cancels any outstanding call.
func (s *AnalysisSession) Close() {
	s.ctrl.InvalidateResult()
}

func (s *AnalysisSession) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the time of the last user action.
func (s *AnalysisSession) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}
