package analysis

import "fmt"

const ControlChart = "control-chart"

type controlChartResults struct {
	ChartType  string   `json:"chart_type"`
	CenterLine *float64 `json:"center_line"`
	UCL        *float64 `json:"ucl"`
	LCL        *float64 `json:"lcl"`
	Points     []struct {
		Index        int     `json:"index"`
		Value        float64 `json:"value"`
		OutOfControl bool    `json:"out_of_control"`
	} `json:"points"`
}

func controlChart() *Definition {
	d := &Definition{
		ID:          ControlChart,
		Title:       "Control Chart",
		Category:    "Quality control",
		Description: "Shewhart control limits for a process measurement.",
		Path:        "/api/quality/control-chart",
		Steps:       []string{"Setup", "Validation", "Summary", "Detailed statistics"},
		RunStep:     2,
		SummaryStep: 3,
		MinSamples:  20,
		Fields: []Field{
			{
				Key:          "variable",
				Label:        "Measurement",
				Kind:         FieldColumn,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
			},
			{
				Key:      "chart_type",
				Label:    "Chart type",
				Kind:     FieldChoice,
				Step:     1,
				Required: true,
				Default:  "i-mr",
				Choices: []Choice{
					{Value: "i-mr", Label: "Individuals / moving range"},
					{Value: "xbar-r", Label: "X̄ / R (subgroups)"},
				},
			},
			{
				Key:      "subgroup_size",
				Label:    "Subgroup size",
				Help:     "Only used by X̄ / R charts.",
				Kind:     FieldNumber,
				Step:     1,
				Required: true,
				Default:  "5",
				Min:      2,
				Max:      10,
				Integer:  true,
			},
		},
	}
	d.Payload = d.valuesPayload("variable")
	d.Rules = []Rule{subgroupCoverage}
	d.Decode = decodeControlChart
	return d
}

// subgroupCoverage warns when X̄/R subgroups are few or leave rows unused.
func subgroupCoverage(in Input) []Check {
	if in.Selections.Get("chart_type") != "xbar-r" {
		return nil
	}
	size, ok := in.Selections.Int("subgroup_size")
	if !ok || size < 1 {
		return nil
	}
	n := in.N()
	groups := n / size
	checks := []Check{{
		ID:       "subgroup_count",
		Field:    "subgroup_size",
		Label:    "At least 20 subgroups",
		Passed:   groups >= 20,
		Severity: SeverityWarning,
		Detail:   fmt.Sprintf("%d subgroups of %d", groups, size),
	}}
	if rest := n % size; rest != 0 {
		checks = append(checks, Check{
			ID:       "subgroup_remainder",
			Field:    "subgroup_size",
			Label:    "Rows divide evenly into subgroups",
			Passed:   false,
			Severity: SeverityInfo,
			Detail:   fmt.Sprintf("the last %d rows are ignored", rest),
		})
	}
	return checks
}

func decodeControlChart(raw []byte) (Summary, error) {
	var r controlChartResults
	if err := decodeStrict(raw, &r); err != nil {
		return Summary{}, err
	}
	switch {
	case r.CenterLine == nil:
		return Summary{}, missing("center_line")
	case r.UCL == nil:
		return Summary{}, missing("ucl")
	case r.LCL == nil:
		return Summary{}, missing("lcl")
	}

	var violations int
	t := Table{Title: "Points", Columns: []string{"#", "Value", "Status"}}
	for _, p := range r.Points {
		status := "in control"
		if p.OutOfControl {
			status = "out of control"
			violations++
		}
		t.Rows = append(t.Rows, []string{fmt.Sprint(p.Index), formatFloat(p.Value, 4), status})
	}

	headline := "The process is in statistical control"
	if violations > 0 {
		headline = fmt.Sprintf("%d points fall outside the control limits", violations)
	}
	s := Summary{
		Headline: headline,
		Metrics: []Metric{
			{Label: "Center line", Value: formatFloat(*r.CenterLine, 4)},
			{Label: "UCL", Value: formatFloat(*r.UCL, 4)},
			{Label: "LCL", Value: formatFloat(*r.LCL, 4)},
			{Label: "Violations", Value: fmt.Sprint(violations)},
		},
		Tables: []Table{t},
	}
	return s, nil
}
