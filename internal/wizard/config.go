package wizard

import (
	"fmt"

	"statwizard/domain/analysis"
)

// Config parameterizes the generic step machine.
type Config struct {
	// Steps are the step labels; N = len(Steps).
	Steps []string
	// RunStep is the validation step whose Next triggers the run.
	RunStep int
	// SummaryStep is where a successful run lands.
	SummaryStep int
}

// ConfigFor derives the step configuration of an analysis definition.
func ConfigFor(def *analysis.Definition) Config {
	return Config{
		Steps:       append([]string(nil), def.Steps...),
		RunStep:     def.RunStep,
		SummaryStep: def.SummaryStep,
	}
}

// StepCount returns N.
func (c Config) StepCount() int {
	return len(c.Steps)
}

// Validate checks 1 ≤ RunStep < SummaryStep ≤ N.
func (c Config) Validate() error {
	n := len(c.Steps)
	switch {
	case n < 2:
		return fmt.Errorf("wizard needs at least two steps, got %d", n)
	case c.RunStep < 1 || c.RunStep >= n:
		return fmt.Errorf("run step %d outside 1..%d", c.RunStep, n-1)
	case c.SummaryStep <= c.RunStep || c.SummaryStep > n:
		return fmt.Errorf("summary step %d must be in %d..%d", c.SummaryStep, c.RunStep+1, n)
	}
	return nil
}

// Label returns the label of step k, 1-based.
func (c Config) Label(k int) string {
	if k < 1 || k > len(c.Steps) {
		return ""
	}
	return c.Steps[k-1]
}
