package analysis

import "fmt"

const LinearRegression = "linear-regression"

type regressionResults struct {
	Coefficients []struct {
		Term     string   `json:"term"`
		Estimate float64  `json:"estimate"`
		StdError *float64 `json:"std_error"`
		TValue   *float64 `json:"t_value"`
		PValue   *float64 `json:"p_value"`
	} `json:"coefficients"`
	RSquared         *float64 `json:"r_squared"`
	AdjRSquared      *float64 `json:"adj_r_squared"`
	FStatistic       *float64 `json:"f_statistic"`
	FPValue          *float64 `json:"f_p_value"`
	ResidualStdError *float64 `json:"residual_std_error"`
	N                int      `json:"n"`
}

func linearRegression() *Definition {
	d := &Definition{
		ID:          LinearRegression,
		Title:       "Linear Regression",
		Category:    "Regression",
		Description: "Model a numeric outcome from one or more predictors, optionally with polynomial terms.",
		Path:        "/api/regression/linear",
		Steps:       []string{"Variables", "Settings", "Validation", "Summary", "Reasoning", "Detailed statistics"},
		RunStep:     3,
		SummaryStep: 4,
		MinSamples:  30,
		Fields: []Field{
			{
				Key:          "dependent",
				Label:        "Dependent variable",
				Help:         "The outcome to explain.",
				Kind:         FieldColumn,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
			},
			{
				Key:          "independents",
				Label:        "Independent variables",
				Help:         "Predictors. The dependent variable cannot also be a predictor.",
				Kind:         FieldColumns,
				Step:         1,
				Required:     true,
				DefaultCount: 1,
				Excludes:     []string{"dependent"},
			},
			{
				Key:      "degree",
				Label:    "Polynomial degree",
				Kind:     FieldNumber,
				Step:     2,
				Required: true,
				Default:  "1",
				Min:      1,
				Max:      5,
				Integer:  true,
			},
			confidenceField(2),
		},
	}
	d.Rules = []Rule{regressionDegreesOfFreedom, regressionPredictorCount}
	d.Decode = decodeRegression
	return d
}

// regressionDegreesOfFreedom requires more rows than estimated parameters.
func regressionDegreesOfFreedom(in Input) []Check {
	degree, ok := in.Selections.Int("degree")
	if !ok || degree < 1 {
		degree = 1
	}
	params := len(in.Selections.All("independents"))*degree + 1
	n := in.N()
	c := Check{
		ID:       "degrees_of_freedom",
		Field:    "degree",
		Label:    "Enough observations for the model",
		Passed:   n > params,
		Severity: SeverityCritical,
	}
	if c.Passed {
		c.Detail = fmt.Sprintf("%d parameters, %d residual degrees of freedom", params, n-params)
	} else {
		c.Detail = fmt.Sprintf("%d parameters need more than %d rows", params, n)
	}
	return []Check{c}
}

func regressionPredictorCount(in Input) []Check {
	k := len(in.Selections.All("independents"))
	c := Check{
		ID:       "predictor_count",
		Field:    "independents",
		Label:    "Manageable number of predictors",
		Passed:   k <= 10,
		Severity: SeverityWarning,
		Detail:   fmt.Sprintf("%d predictors selected", k),
	}
	if !c.Passed {
		c.Detail += "; consider reducing to avoid overfitting"
	}
	return []Check{c}
}

func decodeRegression(raw []byte) (Summary, error) {
	var r regressionResults
	if err := decodeStrict(raw, &r); err != nil {
		return Summary{}, err
	}
	if len(r.Coefficients) == 0 {
		return Summary{}, missing("coefficients")
	}
	if r.RSquared == nil {
		return Summary{}, missing("r_squared")
	}

	s := Summary{
		Headline: fmt.Sprintf("The model explains %s of the variance", formatPercent(*r.RSquared)),
		Metrics: []Metric{
			{Label: "R²", Value: formatFloat(*r.RSquared, 4)},
		},
	}
	if r.AdjRSquared != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "Adjusted R²", Value: formatFloat(*r.AdjRSquared, 4)})
	}
	if r.FStatistic != nil {
		m := Metric{Label: "F statistic", Value: formatFloat(*r.FStatistic, 3)}
		if r.FPValue != nil {
			m.Hint = "p " + formatP(*r.FPValue)
		}
		s.Metrics = append(s.Metrics, m)
	}
	if r.ResidualStdError != nil {
		s.Metrics = append(s.Metrics, Metric{Label: "Residual std. error", Value: formatFloat(*r.ResidualStdError, 4)})
	}
	if r.N > 0 {
		s.Metrics = append(s.Metrics, Metric{Label: "Observations", Value: fmt.Sprint(r.N)})
	}

	coef := Table{
		Title:   "Coefficients",
		Columns: []string{"Term", "Estimate", "Std. error", "t value", "p value"},
	}
	for _, c := range r.Coefficients {
		coef.Rows = append(coef.Rows, []string{
			c.Term,
			formatFloat(c.Estimate, 4),
			optional(c.StdError, 4),
			optional(c.TValue, 3),
			optionalP(c.PValue),
		})
	}
	s.Tables = append(s.Tables, coef)
	return s, nil
}

func optional(v *float64, digits int) string {
	if v == nil {
		return "—"
	}
	return formatFloat(*v, digits)
}

func optionalP(v *float64) string {
	if v == nil {
		return "—"
	}
	return formatP(*v)
}
