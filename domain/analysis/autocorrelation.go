package analysis

import (
	"fmt"
	"math"
)

const Autocorrelation = "autocorrelation"

type autocorrelationResults struct {
	ACF             []float64 `json:"acf"`
	PACF            []float64 `json:"pacf"`
	ConfidenceBound *float64  `json:"confidence_bound"`
	LjungBox        *struct {
		Statistic float64 `json:"statistic"`
		PValue    float64 `json:"p_value"`
		Lags      int     `json:"lags"`
	} `json:"ljung_box"`
}

func autocorrelation() *Definition {
	d := &Definition{
		ID:          Autocorrelation,
		Title:       "Autocorrelation",
		Category:    "Time series",
		Description: "Autocorrelation and partial autocorrelation of a series, with a Ljung-Box test.",
		Path:        "/api/timeseries/autocorrelation",
		Steps:       []string{"Variable", "Settings", "Validation", "Summary", "Detailed statistics"},
		RunStep:     3,
		SummaryStep: 4,
		MinSamples:  20,
		Fields: []Field{
			{
				Key:          "variable",
				Label:        "Series",
				Help:         "Rows are taken in file order.",
				Kind:         FieldColumn,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
			},
			{
				Key:      "lags",
				Label:    "Number of lags",
				Kind:     FieldNumber,
				Step:     2,
				Required: true,
				Default:  "10",
				Min:      1,
				Max:      100,
				Integer:  true,
			},
		},
	}
	d.Payload = d.valuesPayload("variable")
	d.Rules = []Rule{lagsBelowHalfSample}
	d.Decode = decodeAutocorrelation
	return d
}

func lagsBelowHalfSample(in Input) []Check {
	lags, ok := in.Selections.Int("lags")
	if !ok {
		return nil
	}
	n := in.N()
	c := Check{
		ID:       "lags_vs_sample",
		Field:    "lags",
		Label:    "Lag count below half the sample",
		Passed:   lags < n/2,
		Severity: SeverityCritical,
		Detail:   fmt.Sprintf("%d lags for n = %d (maximum %d)", lags, n, max(n/2-1, 0)),
	}
	return []Check{c}
}

func decodeAutocorrelation(raw []byte) (Summary, error) {
	var r autocorrelationResults
	if err := decodeStrict(raw, &r); err != nil {
		return Summary{}, err
	}
	if len(r.ACF) == 0 {
		return Summary{}, missing("acf")
	}

	bound := math.NaN()
	if r.ConfidenceBound != nil {
		bound = *r.ConfidenceBound
	}
	significant := 0
	for i, v := range r.ACF {
		if i == 0 {
			continue // lag 0 is always 1
		}
		if !math.IsNaN(bound) && math.Abs(v) > bound {
			significant++
		}
	}

	s := Summary{
		Headline: fmt.Sprintf("%d of %d lags exceed the confidence bound", significant, max(len(r.ACF)-1, 0)),
		Metrics: []Metric{
			{Label: "Lags", Value: fmt.Sprint(max(len(r.ACF)-1, 0))},
			{Label: "Significant lags", Value: fmt.Sprint(significant)},
		},
	}
	if !math.IsNaN(bound) {
		s.Metrics = append(s.Metrics, Metric{Label: "Confidence bound", Value: "±" + formatFloat(bound, 4)})
	}
	if r.LjungBox != nil {
		s.Metrics = append(s.Metrics, Metric{
			Label: "Ljung-Box Q",
			Value: formatFloat(r.LjungBox.Statistic, 3),
			Hint:  "p " + formatP(r.LjungBox.PValue),
		})
	}

	t := Table{Title: "Correlogram", Columns: []string{"Lag", "ACF", "PACF"}}
	for i, v := range r.ACF {
		pacf := "—"
		if i < len(r.PACF) {
			pacf = formatFloat(r.PACF[i], 4)
		}
		t.Rows = append(t.Rows, []string{fmt.Sprint(i), formatFloat(v, 4), pacf})
	}
	s.Tables = append(s.Tables, t)
	return s, nil
}
