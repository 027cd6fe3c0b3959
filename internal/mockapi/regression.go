package mockapi

import (
	"fmt"
	"math"
	"net/http"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

type regressionRequest struct {
	Dependent       string                `json:"dependent"`
	Independents    []string              `json:"independents"`
	Degree          int                   `json:"degree"`
	ConfidenceLevel float64               `json:"confidence_level"`
	Data            []map[string]*float64 `json:"data"`
}

type coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
}

type regressionResults struct {
	Coefficients     []coefficient `json:"coefficients"`
	RSquared         float64       `json:"r_squared"`
	AdjRSquared      float64       `json:"adj_r_squared"`
	FStatistic       float64       `json:"f_statistic"`
	FPValue          float64       `json:"f_p_value"`
	ResidualStdError float64       `json:"residual_std_error"`
	N                int           `json:"n"`
}

func (s *Server) handleRegression(w http.ResponseWriter, r *http.Request) {
	var req regressionRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, nil, err)
		return
	}
	res, err := linearRegression(req)
	respond(w, r, res, err)
}

// linearRegression fits ordinary least squares on the complete rows. A
// degree above one adds powers of every predictor.
func linearRegression(req regressionRequest) (*response, error) {
	if req.Dependent == "" || len(req.Independents) == 0 {
		return nil, badInput("dependent and at least one independent variable are required")
	}
	degree := req.Degree
	if degree < 1 {
		degree = 1
	}

	terms := []string{"(Intercept)"}
	for _, x := range req.Independents {
		terms = append(terms, x)
		for d := 2; d <= degree; d++ {
			terms = append(terms, fmt.Sprintf("%s^%d", x, d))
		}
	}

	var design, ys []float64
rows:
	for _, row := range req.Data {
		y := row[req.Dependent]
		if y == nil {
			continue
		}
		line := []float64{1}
		for _, x := range req.Independents {
			v := row[x]
			if v == nil {
				continue rows
			}
			for d := 1; d <= degree; d++ {
				line = append(line, math.Pow(*v, float64(d)))
			}
		}
		design = append(design, line...)
		ys = append(ys, *y)
	}

	n, p := len(ys), len(terms)
	if n <= p {
		return nil, badInput("%d complete rows is not enough to estimate %d terms", n, p)
	}

	X := mat.NewDense(n, p, design)
	y := mat.NewVecDense(n, ys)

	var xtx, inv mat.Dense
	xtx.Mul(X.T(), X)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("singular matrix: the predictors are collinear")
	}
	var xty, beta, fitted mat.VecDense
	xty.MulVec(X.T(), y)
	beta.MulVec(&inv, &xty)
	fitted.MulVec(X, &beta)

	mean := stat.Mean(ys, nil)
	var sse, sst float64
	for i, v := range ys {
		e := v - fitted.AtVec(i)
		sse += e * e
		sst += (v - mean) * (v - mean)
	}
	if sst == 0 {
		return nil, fmt.Errorf("the dependent variable %s has no variation", req.Dependent)
	}

	df := float64(n - p)
	sigma2 := sse / df
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	res := regressionResults{N: n}
	for j, term := range terms {
		c := coefficient{Term: term, Estimate: beta.AtVec(j)}
		c.StdError = math.Sqrt(sigma2 * inv.At(j, j))
		if c.StdError > 0 {
			c.TValue = c.Estimate / c.StdError
			c.PValue = 2 * (1 - tDist.CDF(math.Abs(c.TValue)))
		}
		res.Coefficients = append(res.Coefficients, c)
	}
	res.RSquared = 1 - sse/sst
	res.AdjRSquared = 1 - (1-res.RSquared)*float64(n-1)/df
	res.ResidualStdError = math.Sqrt(sigma2)
	if p > 1 && sse > 0 {
		res.FStatistic = ((sst - sse) / float64(p-1)) / sigma2
		res.FPValue = 1 - distuv.F{D1: float64(p - 1), D2: df}.CDF(res.FStatistic)
	}

	alpha := alphaFor(req.ConfidenceLevel)
	var notes []string
	notes = append(notes, fmt.Sprintf("The model explains **%.1f%%** of the variance in %s (adjusted R² %.3f, n = %d).",
		res.RSquared*100, req.Dependent, res.AdjRSquared, n))
	for _, c := range res.Coefficients[1:] {
		verdict := "is not a significant predictor"
		if c.PValue < alpha {
			verdict = "is a significant predictor"
		}
		notes = append(notes, fmt.Sprintf("- `%s` %s (estimate %.4g, p = %.4f).", c.Term, verdict, c.Estimate, c.PValue))
	}
	return &response{Results: res, Interpretation: notes}, nil
}

func alphaFor(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 0.05
	}
	return 1 - confidence
}
