package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"statwizard/domain/core"
)

// Metric is one headline number shown as a card.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Hint  string `json:"hint,omitempty"`
}

// Table is a block of detailed statistics.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Summary is the typed, presentation-ready projection of a result.
type Summary struct {
	Headline string   `json:"headline"`
	Metrics  []Metric `json:"metrics"`
	Tables   []Table  `json:"tables"`
}

// Result is the last successful response of a wizard. It is replaced
// wholesale by the next run and never mutated.
type Result struct {
	AnalysisID     core.AnalysisID `json:"analysis_id"`
	Results        json.RawMessage `json:"results"`
	Interpretation []string        `json:"interpretation,omitempty"`
	Plot           string          `json:"plot,omitempty"`
	Summary        Summary         `json:"summary"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// HasPlot reports whether the response carried an image.
func (r *Result) HasPlot() bool {
	return r != nil && r.Plot != ""
}

func formatFloat(v float64, digits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 0):
		return "∞"
	}
	return strconv.FormatFloat(v, 'f', digits, 64)
}

func formatP(p float64) string {
	if p < 0.0001 {
		return "< 0.0001"
	}
	return formatFloat(p, 4)
}

func formatPercent(v float64) string {
	return formatFloat(v*100, 1) + "%"
}

func significance(p, alpha float64) string {
	if p < alpha {
		return "significant"
	}
	return "not significant"
}

// decodeStrict unmarshals into v and reports a readable error.
func decodeStrict(raw []byte, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty results object")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("results do not match the expected schema: %w", err)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("results missing required field %q", field)
}
