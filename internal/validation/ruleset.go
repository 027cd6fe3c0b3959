package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"statwizard/domain/analysis"

	"github.com/montanaflynn/stats"
)

// RuleSet evaluates the checks of one analysis type. It is a pure function
// of its input: the same dataset and selections always give the same checks
// in the same order.
type RuleSet struct {
	def    *analysis.Definition
	policy AnalysisPolicy
}

// NewRuleSet binds a definition to its resolved policy.
func NewRuleSet(def *analysis.Definition, policy AnalysisPolicy) *RuleSet {
	return &RuleSet{def: def, policy: policy}
}

// Policy returns the thresholds in effect.
func (r *RuleSet) Policy() AnalysisPolicy {
	return r.policy
}

// Evaluate returns the ordered checks, most critical first.
func (r *RuleSet) Evaluate(in analysis.Input) []analysis.Check {
	if in.Columns == nil {
		in = r.def.NewInput(in.Dataset, in.Selections)
	}
	var checks []analysis.Check

	for _, f := range r.def.Fields {
		if f.Required {
			checks = append(checks, requiredCheck(f, in.Selections))
		}
	}
	for _, f := range r.def.Fields {
		if f.IsColumn() && in.Selections.Has(f.Key) {
			checks = append(checks, r.numericCheck(f, in))
		}
	}
	for _, f := range r.def.Fields {
		for _, ex := range f.Excludes {
			checks = append(checks, r.exclusionCheck(f, ex, in.Selections))
		}
	}
	for _, f := range r.def.Fields {
		if (f.Kind == analysis.FieldNumber || f.Kind == analysis.FieldChoice) && in.Selections.Has(f.Key) {
			checks = append(checks, valueCheck(f, in.Selections))
		}
	}

	checks = append(checks, r.sampleSizeCheck(in))

	for _, rule := range r.def.Rules {
		checks = append(checks, rule(in)...)
	}

	checks = append(checks, r.dataQualityChecks(in)...)

	for i := range checks {
		if s, ok := r.policy.SeverityOverrides[checks[i].ID]; ok {
			checks[i].Severity = s
		}
	}
	analysis.SortChecks(checks)
	return checks
}

func requiredCheck(f analysis.Field, sel analysis.Selections) analysis.Check {
	c := analysis.Check{
		ID:       "required:" + f.Key,
		Field:    f.Key,
		Passed:   sel.Has(f.Key),
		Severity: analysis.SeverityCritical,
	}
	if f.IsColumn() {
		c.Label = f.Label + " selected"
	} else {
		c.Label = f.Label + " set"
	}
	switch {
	case c.Passed:
		c.Detail = fmt.Sprintf("%s = %s", f.Label, strings.Join(sel.All(f.Key), ", "))
	case f.IsColumn():
		c.Detail = "No variable selected"
	default:
		c.Detail = "No value entered"
	}
	return c
}

func (r *RuleSet) numericCheck(f analysis.Field, in analysis.Input) analysis.Check {
	var bad []string
	for _, col := range in.Selections.All(f.Key) {
		switch {
		case !in.Dataset.HasColumn(col):
			bad = append(bad, col+" (not in dataset)")
		case !in.Dataset.IsNumeric(col):
			bad = append(bad, col+" (not numeric)")
		}
	}
	c := analysis.Check{
		ID:       "numeric:" + f.Key,
		Field:    f.Key,
		Label:    f.Label + " is numeric",
		Passed:   len(bad) == 0,
		Severity: analysis.SeverityCritical,
	}
	if c.Passed {
		c.Detail = "All selected columns contain numbers"
	} else {
		c.Detail = strings.Join(bad, ", ")
	}
	if f.Kind == analysis.FieldColumn && len(in.Selections.All(f.Key)) > 1 {
		c.Passed = false
		c.Detail = "Only one column may be selected"
	}
	return c
}

func (r *RuleSet) exclusionCheck(f analysis.Field, exKey string, sel analysis.Selections) analysis.Check {
	ex, _ := r.def.Field(exKey)
	excluded := make(map[string]bool)
	for _, c := range sel.All(exKey) {
		excluded[c] = true
	}
	var overlap []string
	for _, c := range sel.All(f.Key) {
		if excluded[c] {
			overlap = append(overlap, c)
		}
	}
	c := analysis.Check{
		ID:       "exclusive:" + f.Key,
		Field:    f.Key,
		Label:    fmt.Sprintf("%s does not repeat the %s", f.Label, strings.ToLower(ex.Label)),
		Passed:   len(overlap) == 0,
		Severity: analysis.SeverityCritical,
	}
	if c.Passed {
		c.Detail = "No overlap"
	} else {
		c.Detail = fmt.Sprintf("%s is already the %s", strings.Join(overlap, ", "), strings.ToLower(ex.Label))
	}
	return c
}

func valueCheck(f analysis.Field, sel analysis.Selections) analysis.Check {
	c := analysis.Check{
		ID:       "value:" + f.Key,
		Field:    f.Key,
		Label:    f.Label + " is valid",
		Passed:   true,
		Severity: analysis.SeverityCritical,
	}
	raw := sel.Get(f.Key)

	if f.Kind == analysis.FieldChoice {
		if !f.HasChoice(raw) {
			c.Passed = false
			c.Detail = fmt.Sprintf("%q is not an available option", raw)
		} else {
			c.Detail = raw
		}
		return c
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	v, ok := sel.Float(f.Key)
	_, whole := sel.Int(f.Key)
	switch {
	case err != nil:
		c.Passed = false
		c.Detail = fmt.Sprintf("%q is not a number", raw)
	case !ok:
		c.Passed = false
		c.Detail = fmt.Sprintf("%s is not a finite number", raw)
	case f.Integer && !whole:
		c.Passed = false
		if parsed == math.Trunc(parsed) {
			c.Detail = fmt.Sprintf("%s is too large", raw)
		} else {
			c.Detail = fmt.Sprintf("%s must be a whole number", raw)
		}
	case v < f.Min || v > f.Max:
		c.Passed = false
		c.Detail = fmt.Sprintf("%s is outside %s", raw, rangeText(f))
	default:
		c.Detail = fmt.Sprintf("%s within %s", raw, rangeText(f))
	}
	return c
}

func rangeText(f analysis.Field) string {
	lo, hi := "−∞", "∞"
	if !math.IsInf(f.Min, -1) {
		lo = fmt.Sprint(f.Min)
	}
	if !math.IsInf(f.Max, 1) {
		hi = fmt.Sprint(f.Max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

func (r *RuleSet) sampleSizeCheck(in analysis.Input) analysis.Check {
	n := in.N()
	minimum := r.policy.MinSamples
	c := analysis.Check{
		ID:       "sample_size",
		Label:    "Sufficient sample size",
		Passed:   n >= minimum,
		Severity: r.policy.SampleSeverity,
	}
	if c.Passed {
		c.Detail = fmt.Sprintf("n = %d (minimum %d)", n, minimum)
	} else {
		c.Detail = fmt.Sprintf("n = %d, at least %d required", n, minimum)
	}
	return c
}

// dataQualityChecks inspects the selected numeric columns. They inform, and
// only block when policy raises their severity.
func (r *RuleSet) dataQualityChecks(in analysis.Input) []analysis.Check {
	cols := r.selectedNumericColumns(in)
	if len(cols) == 0 {
		return nil
	}

	var blanks, constant, outliers []string
	for _, col := range cols {
		values, missing, err := in.Dataset.Column(col)
		if err != nil {
			continue
		}
		if missing > 0 {
			blanks = append(blanks, fmt.Sprintf("%s: %d blank", col, missing))
		}
		if sd, err := stats.StandardDeviation(values); err == nil && sd == 0 {
			constant = append(constant, col)
		}
		if k := countOutliers(values); k > 0 {
			outliers = append(outliers, fmt.Sprintf("%s: %d", col, k))
		}
	}

	missingCheck := analysis.Check{
		ID:       "missing_values",
		Label:    "No missing values",
		Passed:   len(blanks) == 0,
		Severity: r.policy.MissingValuesSeverity,
		Detail:   "All selected columns are complete",
	}
	if !missingCheck.Passed {
		missingCheck.Detail = strings.Join(blanks, "; ") + "; blank cells are skipped"
	}

	variationCheck := analysis.Check{
		ID:       "variation",
		Label:    "Selected variables vary",
		Passed:   len(constant) == 0,
		Severity: r.policy.VariationSeverity,
		Detail:   "Every selected column has non-zero spread",
	}
	if !variationCheck.Passed {
		variationCheck.Detail = "Constant: " + strings.Join(constant, ", ")
	}

	outlierCheck := analysis.Check{
		ID:       "outliers",
		Label:    "No extreme outliers",
		Passed:   len(outliers) == 0,
		Severity: r.policy.OutlierSeverity,
		Detail:   "No values beyond 1.5 × IQR",
	}
	if !outlierCheck.Passed {
		outlierCheck.Detail = "Beyond 1.5 × IQR: " + strings.Join(outliers, "; ")
	}

	return []analysis.Check{missingCheck, variationCheck, outlierCheck}
}

// selectedNumericColumns lists selected numeric columns once each, in field order.
func (r *RuleSet) selectedNumericColumns(in analysis.Input) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range r.def.Fields {
		if !f.IsColumn() {
			continue
		}
		for _, col := range in.Selections.All(f.Key) {
			if seen[col] || !in.Dataset.IsNumeric(col) {
				continue
			}
			seen[col] = true
			cols = append(cols, col)
		}
	}
	return cols
}

func countOutliers(values []float64) int {
	if len(values) < 4 {
		return 0
	}
	q, err := stats.Quartile(values)
	if err != nil {
		return 0
	}
	iqr := q.Q3 - q.Q1
	lo, hi := q.Q1-1.5*iqr, q.Q3+1.5*iqr
	n := 0
	for _, v := range values {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}
