package analysis

import "fmt"

const MonteCarlo = "monte-carlo"

type monteCarloResults struct {
	Mean              *float64 `json:"mean"`
	StdDev            *float64 `json:"std_dev"`
	PercentileLower   *float64 `json:"percentile_lower"`
	PercentileUpper   *float64 `json:"percentile_upper"`
	ProbabilityOfLoss *float64 `json:"probability_of_loss"`
	Iterations        int      `json:"iterations"`
	Horizon           int      `json:"horizon"`
	Histogram         []struct {
		Lower float64 `json:"lower"`
		Upper float64 `json:"upper"`
		Count int     `json:"count"`
	} `json:"histogram"`
}

func monteCarlo() *Definition {
	d := &Definition{
		ID:          MonteCarlo,
		Title:       "Monte Carlo Simulation",
		Category:    "Simulation",
		Description: "Bootstrap future cumulative outcomes from the observed per-period changes.",
		Path:        "/api/simulation/monte-carlo",
		Steps:       []string{"Variable", "Settings", "Validation", "Summary", "Detailed statistics"},
		RunStep:     3,
		SummaryStep: 4,
		MinSamples:  3,
		Fields: []Field{
			{
				Key:          "variable",
				Label:        "Per-period values",
				Kind:         FieldColumn,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
			},
			{
				Key:      "iterations",
				Label:    "Iterations",
				Kind:     FieldNumber,
				Step:     2,
				Required: true,
				Default:  "10000",
				Min:      100,
				Max:      100000,
				Integer:  true,
			},
			{
				Key:      "horizon",
				Label:    "Horizon (periods)",
				Kind:     FieldNumber,
				Step:     2,
				Required: true,
				Default:  "30",
				Min:      1,
				Max:      1000,
				Integer:  true,
			},
			confidenceField(2),
		},
	}
	d.Payload = d.valuesPayload("variable")
	d.Decode = decodeMonteCarlo
	return d
}

func decodeMonteCarlo(raw []byte) (Summary, error) {
	var r monteCarloResults
	if err := decodeStrict(raw, &r); err != nil {
		return Summary{}, err
	}
	if r.Mean == nil {
		return Summary{}, missing("mean")
	}

	s := Summary{
		Headline: fmt.Sprintf("Expected cumulative outcome %s", formatFloat(*r.Mean, 2)),
		Metrics:  []Metric{{Label: "Mean", Value: formatFloat(*r.Mean, 4)}},
	}
	if r.StdDev != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "Std. deviation", Value: formatFloat(*r.StdDev, 4)})
	}
	if r.PercentileLower != nil && r.PercentileUpper != nil {
		s.Metrics = append(s.Metrics, Metric{
			Label: "Interval",
			Value: fmt.Sprintf("[%s, %s]", formatFloat(*r.PercentileLower, 2), formatFloat(*r.PercentileUpper, 2)),
		})
	}
	if r.ProbabilityOfLoss != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "P(outcome < 0)", Value: formatPercent(*r.ProbabilityOfLoss)})
	}
	if r.Iterations > 0 {
		s.Metrics = append(s.Metrics, Metric{Label: "Iterations", Value: fmt.Sprint(r.Iterations)})
	}

	if len(r.Histogram) > 0 {
		t := Table{Title: "Distribution", Columns: []string{"From", "To", "Count"}}
		for _, b := range r.Histogram {
			t.Rows = append(t.Rows, []string{formatFloat(b.Lower, 2), formatFloat(b.Upper, 2), fmt.Sprint(b.Count)})
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}
