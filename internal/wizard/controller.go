// Package wizard implements the step state machine that drives one analysis:
// navigation bounded by a high-water mark, a run gated on validation, and a
// single result slot that is invalidated whenever its inputs change.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
	apperrors "statwizard/internal/errors"
)

var (
	// ErrRunInProgress rejects a second run or a navigation while a call is outstanding.
	ErrRunInProgress = errors.New("analysis already running")
	// ErrValidationBlocked means at least one critical check failed.
	ErrValidationBlocked = errors.New("validation has unresolved critical checks")
	// ErrStepLocked means the target step has not been reached yet.
	ErrStepLocked = errors.New("step not reached yet")
	// ErrNotRunStep means a run was requested away from the validation step
	// and the result steps.
	ErrNotRunStep = errors.New("analysis runs from the validation step")
	// ErrStaleRun means the inputs changed while the call was outstanding
	// and its response was dropped.
	ErrStaleRun = errors.New("inputs changed during run; response discarded")
)

// Planner supplies the validation checks and the request for the current
// inputs. It is called outside the controller lock.
type Planner interface {
	Checks() []analysis.Check
	Request() (analysis.Request, error)
}

// Client performs the remote call for one request.
type Client interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Controller owns one WizardState. It is safe for concurrent use; every
// mutation happens under mu and observers are notified after unlock.
type Controller struct {
	label     string
	cfg       Config
	planner   Planner
	client    Client
	observers []Observer
	now       func() time.Time

	mu     sync.Mutex
	state  State
	epoch  uint64
	cancel context.CancelFunc
}

// New creates a controller positioned at step 1 for the given dataset.
func New(label string, cfg Config, datasetID core.DatasetID, planner Planner, client Client, observers ...Observer) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("wizard %q: %v", label, err))
	}
	if planner == nil || client == nil {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("wizard %q: planner and client are required", label))
	}
	return &Controller{
		label:     label,
		cfg:       cfg,
		planner:   planner,
		client:    client,
		observers: observers,
		now:       time.Now,
		state:     initialState(datasetID),
	}, nil
}

// Config returns the step configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GoToStep jumps to a step already reached. Locked steps leave the state unchanged.
func (c *Controller) GoToStep(k int) (State, error) {
	c.mu.Lock()
	if c.state.IsRunning {
		defer c.mu.Unlock()
		return c.state, ErrRunInProgress
	}
	if !c.state.Navigable(k) {
		defer c.mu.Unlock()
		return c.state, fmt.Errorf("%w: %d (reached %d)", ErrStepLocked, k, c.state.MaxReachedStep)
	}
	changed := c.state.CurrentStep != k
	c.state.CurrentStep = k
	st := c.state
	c.mu.Unlock()

	if changed {
		c.emit(Event{Kind: EventStepChanged, Step: k, DatasetID: st.DatasetID})
	}
	return st, nil
}

// PrevStep moves back one step. maxReachedStep is never lowered.
func (c *Controller) PrevStep() (State, error) {
	c.mu.Lock()
	if c.state.IsRunning {
		defer c.mu.Unlock()
		return c.state, ErrRunInProgress
	}
	if c.state.CurrentStep <= 1 {
		defer c.mu.Unlock()
		return c.state, nil
	}
	c.state.CurrentStep--
	st := c.state
	c.mu.Unlock()

	c.emit(Event{Kind: EventStepChanged, Step: st.CurrentStep, DatasetID: st.DatasetID})
	return st, nil
}

// NextStep advances one step, or triggers the run when standing on the run step.
// At the last step it is a no-op.
func (c *Controller) NextStep(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.IsRunning {
		defer c.mu.Unlock()
		return c.state, ErrRunInProgress
	}
	k := c.state.CurrentStep
	if k == c.cfg.RunStep {
		c.mu.Unlock()
		return c.Run(ctx)
	}
	if k >= c.cfg.StepCount() {
		defer c.mu.Unlock()
		return c.state, nil
	}
	c.state.CurrentStep = k + 1
	if c.state.MaxReachedStep < k+1 {
		c.state.MaxReachedStep = k + 1
	}
	st := c.state
	c.mu.Unlock()

	c.emit(Event{Kind: EventStepChanged, Step: st.CurrentStep, DatasetID: st.DatasetID})
	return st, nil
}

// Run executes the run sequence: gate on critical checks, clear the result
// slot, call the client once, then store either the result or the error.
// It is only accepted on the validation step or a result step.
// It blocks until the call returns. A response that arrives after Reset or
// InvalidateResult is dropped and ErrStaleRun is returned.
func (c *Controller) Run(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.IsRunning {
		defer c.mu.Unlock()
		return c.state, ErrRunInProgress
	}
	if !c.state.CanRun(c.cfg) {
		defer c.mu.Unlock()
		return c.state, fmt.Errorf("%w (step %d, run step %d)", ErrNotRunStep, c.state.CurrentStep, c.cfg.RunStep)
	}
	epoch := c.epoch
	c.mu.Unlock()

	checks := c.planner.Checks()
	if blocking := analysis.BlockingChecks(checks); len(blocking) > 0 {
		labels := make([]string, 0, len(blocking))
		for _, ch := range blocking {
			labels = append(labels, ch.Label)
		}
		st := c.State()
		msg := strings.Join(labels, ", ")
		c.emit(Event{Kind: EventRunBlocked, Step: st.CurrentStep, DatasetID: st.DatasetID, Message: msg})
		return st, fmt.Errorf("%w: %s", ErrValidationBlocked, msg)
	}

	req, reqErr := c.planner.Request()

	c.mu.Lock()
	if c.state.IsRunning {
		defer c.mu.Unlock()
		return c.state, ErrRunInProgress
	}
	if c.epoch != epoch {
		defer c.mu.Unlock()
		return c.state, ErrStaleRun
	}
	if !c.state.CanRun(c.cfg) {
		defer c.mu.Unlock()
		return c.state, fmt.Errorf("%w (step %d, run step %d)", ErrNotRunStep, c.state.CurrentStep, c.cfg.RunStep)
	}
	c.state.LastResult = nil
	c.state.LastError = ""
	if reqErr != nil {
		c.state.LastError = apperrors.UserMessage(reqErr)
		st := c.state
		c.mu.Unlock()
		log.Printf("[Wizard] %s: building request failed: %v", c.label, reqErr)
		c.emit(Event{Kind: EventRunFailed, Step: st.CurrentStep, DatasetID: st.DatasetID, Message: st.LastError})
		return st, reqErr
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.IsRunning = true
	st := c.state
	c.mu.Unlock()

	c.emit(Event{Kind: EventRunStarted, Step: st.CurrentStep, DatasetID: st.DatasetID, Message: string(req.AnalysisID)})

	start := c.now()
	res, err := c.client.Analyze(runCtx, req)
	cancel()
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	if c.epoch != epoch {
		st := c.state
		c.mu.Unlock()
		log.Printf("[Wizard] %s: discarding stale response after %v", c.label, elapsed)
		c.emit(Event{Kind: EventRunDiscarded, Step: st.CurrentStep, DatasetID: st.DatasetID, Duration: elapsed})
		return st, ErrStaleRun
	}
	c.cancel = nil
	c.state.IsRunning = false
	if err != nil {
		c.state.LastError = apperrors.UserMessage(err)
		st := c.state
		c.mu.Unlock()
		log.Printf("[Wizard] %s: run failed after %v: %v", c.label, elapsed, err)
		c.emit(Event{Kind: EventRunFailed, Step: st.CurrentStep, DatasetID: st.DatasetID, Message: st.LastError, Duration: elapsed})
		return st, err
	}
	c.state.LastResult = res
	c.state.CurrentStep = c.cfg.SummaryStep
	if c.state.MaxReachedStep < c.cfg.SummaryStep {
		c.state.MaxReachedStep = c.cfg.SummaryStep
	}
	st = c.state
	c.mu.Unlock()

	log.Printf("[Wizard] %s: run succeeded in %v", c.label, elapsed)
	c.emit(Event{Kind: EventRunSucceeded, Step: st.CurrentStep, DatasetID: st.DatasetID, Duration: elapsed})
	return st, nil
}

// Reset reinitializes the wizard for a dataset. Any outstanding call is
// cancelled and its response will be dropped.
func (c *Controller) Reset(datasetID core.DatasetID) State {
	c.mu.Lock()
	c.invalidateLocked()
	c.state = initialState(datasetID)
	st := c.state
	c.mu.Unlock()

	c.emit(Event{Kind: EventReset, Step: 1, DatasetID: datasetID})
	return st
}

// SetDataset resets the wizard when the dataset identity changed.
func (c *Controller) SetDataset(datasetID core.DatasetID) bool {
	c.mu.Lock()
	same := c.state.DatasetID == datasetID
	c.mu.Unlock()
	if same {
		return false
	}
	c.Reset(datasetID)
	return true
}

// InvalidateResult clears the result slot after a selection change without
// moving the step cursor. An outstanding call is cancelled.
func (c *Controller) InvalidateResult() State {
	c.mu.Lock()
	changed := c.state.IsRunning || c.state.LastResult != nil || c.state.LastError != ""
	c.invalidateLocked()
	c.state.IsRunning = false
	c.state.LastResult = nil
	c.state.LastError = ""
	st := c.state
	c.mu.Unlock()

	if changed {
		c.emit(Event{Kind: EventResultCleared, Step: st.CurrentStep, DatasetID: st.DatasetID})
	}
	return st
}

func (c *Controller) invalidateLocked() {
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) emit(e Event) {
	e.Label = c.label
	if e.At.IsZero() {
		e.At = c.now()
	}
	for _, o := range c.observers {
		o.Notify(e)
	}
}
