package mockapi

import (
	"fmt"
	"math"
	"net/http"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

type tTestRequest struct {
	VariableA       string    `json:"variable_a"`
	SampleA         []float64 `json:"sample_a"`
	VariableB       string    `json:"variable_b"`
	SampleB         []float64 `json:"sample_b"`
	Mu              float64   `json:"mu"`
	Alternative     string    `json:"alternative"`
	ConfidenceLevel float64   `json:"confidence_level"`
}

type tTestResults struct {
	Test           string  `json:"test"`
	Statistic      float64 `json:"statistic"`
	PValue         float64 `json:"p_value"`
	DF             float64 `json:"df"`
	MeanDifference float64 `json:"mean_difference"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	NA             int     `json:"n_a"`
	NB             int     `json:"n_b,omitempty"`
	Alpha          float64 `json:"alpha"`
}

func (s *Server) handleTTest(w http.ResponseWriter, r *http.Request) {
	var req tTestRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, nil, err)
		return
	}
	res, err := tTest(req)
	respond(w, r, res, err)
}

// tTest runs a one-sample test, or Welch's test when a second sample is sent.
// mu is the hypothesized mean, or mean difference for two samples.
func tTest(req tTestRequest) (*response, error) {
	if len(req.SampleA) < 2 {
		return nil, badInput("sample_a needs at least two values")
	}
	if req.SampleB != nil && len(req.SampleB) < 2 {
		return nil, badInput("sample_b needs at least two values")
	}
	alt := req.Alternative
	switch alt {
	case "":
		alt = "two-sided"
	case "two-sided", "less", "greater":
	default:
		return nil, badInput("unknown alternative %q", req.Alternative)
	}

	alpha := alphaFor(req.ConfidenceLevel)
	res := tTestResults{Alpha: alpha, NA: len(req.SampleA)}

	meanA, varA := stat.MeanVariance(req.SampleA, nil)
	nA := float64(len(req.SampleA))
	var se float64
	if req.SampleB == nil {
		res.Test = "one-sample"
		res.MeanDifference = meanA
		se = math.Sqrt(varA / nA)
		res.DF = nA - 1
	} else {
		res.Test = "welch"
		res.NB = len(req.SampleB)
		meanB, varB := stat.MeanVariance(req.SampleB, nil)
		nB := float64(len(req.SampleB))
		res.MeanDifference = meanA - meanB
		qa, qb := varA/nA, varB/nB
		se = math.Sqrt(qa + qb)
		res.DF = (qa + qb) * (qa + qb) / (qa*qa/(nA-1) + qb*qb/(nB-1))
	}
	if se == 0 || math.IsNaN(se) {
		return nil, fmt.Errorf("the samples have no variation, the t statistic is undefined")
	}

	res.Statistic = (res.MeanDifference - req.Mu) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	switch alt {
	case "less":
		res.PValue = dist.CDF(res.Statistic)
	case "greater":
		res.PValue = 1 - dist.CDF(res.Statistic)
	default:
		res.PValue = 2 * (1 - dist.CDF(math.Abs(res.Statistic)))
	}
	q := dist.Quantile(1 - alpha/2)
	res.CILower = res.MeanDifference - q*se
	res.CIUpper = res.MeanDifference + q*se

	subject := fmt.Sprintf("the mean of %s", req.VariableA)
	if res.NB > 0 {
		subject = fmt.Sprintf("the mean difference between %s and %s", req.VariableA, req.VariableB)
	}
	verdict := "does not differ significantly from"
	if res.PValue < alpha {
		verdict = "differs significantly from"
	}
	notes := []string{
		fmt.Sprintf("At α = %.2f, %s (%.4g) %s %.4g (t = %.3f, p = %.4f).", alpha, subject, res.MeanDifference, verdict, req.Mu, res.Statistic, res.PValue),
		fmt.Sprintf("The %.0f%% confidence interval is [%.4g, %.4g].", (1-alpha)*100, res.CILower, res.CIUpper),
	}
	return &response{Results: res, Interpretation: notes}, nil
}
