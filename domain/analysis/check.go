package analysis

import "sort"

// Severity ranks a validation check. Only critical failures block a run.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// Check is one named pass/fail assertion about the current input.
type Check struct {
	ID       string   `json:"id"`
	Field    string   `json:"field,omitempty"`
	Label    string   `json:"label"`
	Passed   bool     `json:"passed"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
}

// Blocking reports whether the check stops the wizard at the validation step.
func (c Check) Blocking() bool {
	return !c.Passed && c.Severity == SeverityCritical
}

// SortChecks orders checks most critical first, keeping generation order within a severity.
func SortChecks(checks []Check) {
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].Severity.rank() < checks[j].Severity.rank()
	})
}

// BlockingChecks returns the failed critical checks.
func BlockingChecks(checks []Check) []Check {
	var out []Check
	for _, c := range checks {
		if c.Blocking() {
			out = append(out, c)
		}
	}
	return out
}

// HasBlocking reports whether any check blocks progression.
func HasBlocking(checks []Check) bool {
	for _, c := range checks {
		if c.Blocking() {
			return true
		}
	}
	return false
}

// ForField returns the failed checks attached to a form field, for inline markers.
func ForField(checks []Check, field string) []Check {
	var out []Check
	for _, c := range checks {
		if c.Field == field && !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
