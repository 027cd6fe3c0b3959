package app

import (
	"statwizard/domain/analysis"
	"statwizard/domain/dataset"
	"statwizard/internal/wizard"
)

// StepView is one entry of the step indicator.
type StepView struct {
	Index     int
	Label     string
	Current   bool
	Reachable bool
	Done      bool
}

// FieldView is one input with its candidates and inline checks.
type FieldView struct {
	Field      analysis.Field
	Values     []string
	Candidates []string
	Checks     []analysis.Check
}

// Selected reports whether v is among the field's values.
func (f FieldView) Selected(v string) bool {
	for _, x := range f.Values {
		if x == v {
			return true
		}
	}
	return false
}

// Value returns the first value.
func (f FieldView) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Invalid reports whether a failed check is attached to the field.
func (f FieldView) Invalid() bool {
	for _, c := range f.Checks {
		if !c.Passed {
			return true
		}
	}
	return false
}

// ResultSection names what a result step shows.
type ResultSection string

const (
	SectionSummary   ResultSection = "summary"
	SectionReasoning ResultSection = "reasoning"
	SectionDetails   ResultSection = "details"
)

// reasoningLabel is the step label that gets the written interpretation.
const reasoningLabel = "Reasoning"

// SessionView is everything the wizard page renders, taken at one instant.
type SessionView struct {
	Definition *analysis.Definition
	Dataset    *dataset.Dataset
	State      wizard.State
	Phase      wizard.Phase
	Steps      []StepView
	StepLabel  string
	Fields     []FieldView
	Checks     []analysis.Check
	Blocked    bool
	IsRunStep  bool
	IsLastStep bool
	// CanRerun is set on result steps, where "Run again" is offered.
	CanRerun bool
	Result   *analysis.Result

	// Section is set on result steps. Interpretation text goes to a
	// reasoning step when the analysis has one, otherwise under the tables.
	Section              ResultSection
	InlineInterpretation bool
}

// View snapshots the session for rendering. The result is shown only on
// result steps so a stale one can never sit next to editing controls.
func (s *AnalysisSession) View() SessionView {
	st := s.ctrl.State()
	cfg := s.ctrl.Config()
	in := s.input()
	checks := s.rules.Evaluate(in)

	v := SessionView{
		Definition: s.def,
		Dataset:    in.Dataset,
		State:      st,
		Phase:      st.Phase(cfg),
		StepLabel:  cfg.Label(st.CurrentStep),
		Checks:     checks,
		Blocked:    analysis.HasBlocking(checks),
		IsRunStep:  st.CurrentStep == cfg.RunStep,
		IsLastStep: st.CurrentStep == cfg.StepCount(),
		CanRerun:   st.CurrentStep >= cfg.SummaryStep,
	}
	for i, label := range cfg.Steps {
		k := i + 1
		v.Steps = append(v.Steps, StepView{
			Index:     k,
			Label:     label,
			Current:   k == st.CurrentStep,
			Reachable: st.Navigable(k),
			Done:      k < st.MaxReachedStep,
		})
	}
	for _, f := range s.def.FieldsForStep(st.CurrentStep) {
		fv := FieldView{Field: f, Values: in.Selections.All(f.Key), Checks: analysis.ForField(checks, f.Key)}
		if f.IsColumn() {
			fv.Candidates = s.def.Candidates(f.Key, in)
		}
		v.Fields = append(v.Fields, fv)
	}
	if st.CurrentStep >= cfg.SummaryStep {
		v.Result = st.LastResult
		v.Section = resultSection(cfg, st.CurrentStep)
		v.InlineInterpretation = !hasStep(cfg, reasoningLabel)
	}
	return v
}

func resultSection(cfg wizard.Config, step int) ResultSection {
	switch {
	case step == cfg.SummaryStep:
		return SectionSummary
	case cfg.Label(step) == reasoningLabel:
		return SectionReasoning
	default:
		return SectionDetails
	}
}

func hasStep(cfg wizard.Config, label string) bool {
	for _, l := range cfg.Steps {
		if l == label {
			return true
		}
	}
	return false
}
