package analysis

import (
	"fmt"
	"math"
)

const TTest = "t-test"

type tTestResults struct {
	Test           string   `json:"test"`
	Statistic      *float64 `json:"statistic"`
	PValue         *float64 `json:"p_value"`
	DF             *float64 `json:"df"`
	MeanDifference *float64 `json:"mean_difference"`
	CILower        *float64 `json:"ci_lower"`
	CIUpper        *float64 `json:"ci_upper"`
	NA             int      `json:"n_a"`
	NB             int      `json:"n_b"`
	Alpha          *float64 `json:"alpha"`
}

func tTest() *Definition {
	d := &Definition{
		ID:          TTest,
		Title:       "t-Test",
		Category:    "Hypothesis testing",
		Description: "Compare a mean against a hypothesized value, or two means against each other (Welch).",
		Path:        "/api/hypothesis/t-test",
		Steps:       []string{"Variables", "Settings", "Validation", "Summary", "Detailed statistics"},
		RunStep:     3,
		SummaryStep: 4,
		MinSamples:  20,
		Fields: []Field{
			{
				Key:          "variable_a",
				Label:        "Variable",
				Kind:         FieldColumn,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
			},
			{
				Key:      "variable_b",
				Label:    "Comparison variable",
				Help:     "Leave empty for a one-sample test.",
				Kind:     FieldColumn,
				Step:     1,
				Excludes: []string{"variable_a"},
			},
			{
				Key:      "mu",
				Label:    "Hypothesized mean",
				Kind:     FieldNumber,
				Step:     2,
				Default:  "0",
				Min:      math.Inf(-1),
				Max:      math.Inf(1),
				Required: true,
			},
			{
				Key:      "alternative",
				Label:    "Alternative hypothesis",
				Kind:     FieldChoice,
				Step:     2,
				Required: true,
				Default:  "two-sided",
				Choices: []Choice{
					{Value: "two-sided", Label: "Two-sided (≠)"},
					{Value: "less", Label: "Less than (<)"},
					{Value: "greater", Label: "Greater than (>)"},
				},
			},
			confidenceField(2),
		},
	}
	d.Payload = tTestPayload
	d.Decode = decodeTTest
	return d
}

func tTestPayload(in Input) (map[string]any, error) {
	body := map[string]any{
		"variable_a":  in.Selections.Get("variable_a"),
		"alternative": in.Selections.Get("alternative"),
	}
	if v, ok := in.Selections.Float("mu"); ok {
		body["mu"] = v
	}
	if v, ok := in.Selections.Float("confidence_level"); ok {
		body["confidence_level"] = v
	}
	a, _, err := in.Dataset.Column(in.Selections.Get("variable_a"))
	if err != nil {
		return nil, err
	}
	body["sample_a"] = a
	if in.Selections.Has("variable_b") {
		b, _, err := in.Dataset.Column(in.Selections.Get("variable_b"))
		if err != nil {
			return nil, err
		}
		body["variable_b"] = in.Selections.Get("variable_b")
		body["sample_b"] = b
	}
	return body, nil
}

func decodeTTest(raw []byte) (Summary, error) {
	var r tTestResults
	if err := decodeStrict(raw, &r); err != nil {
		return Summary{}, err
	}
	if r.Statistic == nil {
		return Summary{}, missing("statistic")
	}
	if r.PValue == nil {
		return Summary{}, missing("p_value")
	}

	alpha := 0.05
	if r.Alpha != nil {
		alpha = *r.Alpha
	}
	name := "One-sample t-test"
	if r.Test == "welch" || r.NB > 0 {
		name = "Welch two-sample t-test"
	}

	s := Summary{
		Headline: fmt.Sprintf("%s: the difference is %s at α = %s", name, significance(*r.PValue, alpha), formatFloat(alpha, 2)),
		Metrics: []Metric{
			{Label: "t statistic", Value: formatFloat(*r.Statistic, 4)},
			{Label: "p value", Value: formatP(*r.PValue)},
		},
	}
	if r.DF != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "Degrees of freedom", Value: formatFloat(*r.DF, 2)})
	}
	if r.MeanDifference != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "Mean difference", Value: formatFloat(*r.MeanDifference, 4)})
	}

	details := Table{Title: "Test details", Columns: []string{"Quantity", "Value"}}
	details.Rows = append(details.Rows, []string{"Test", name})
	if r.CILower != nil && r.CIUpper != nil {
		details.Rows = append(details.Rows, []string{"Confidence interval",
			fmt.Sprintf("[%s, %s]", formatFloat(*r.CILower, 4), formatFloat(*r.CIUpper, 4))})
	}
	if r.NA > 0 {
		details.Rows = append(details.Rows, []string{"n (variable)", fmt.Sprint(r.NA)})
	}
	if r.NB > 0 {
		details.Rows = append(details.Rows, []string{"n (comparison)", fmt.Sprint(r.NB)})
	}
	s.Tables = append(s.Tables, details)
	return s, nil
}
