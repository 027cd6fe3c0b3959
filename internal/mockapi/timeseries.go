package mockapi

import (
	"fmt"
	"math"
	"net/http"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

type autocorrelationRequest struct {
	Variable string    `json:"variable"`
	Lags     int       `json:"lags"`
	Values   []float64 `json:"values"`
}

type ljungBox struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Lags      int     `json:"lags"`
}

type autocorrelationResults struct {
	ACF             []float64 `json:"acf"`
	PACF            []float64 `json:"pacf"`
	ConfidenceBound float64   `json:"confidence_bound"`
	LjungBox        ljungBox  `json:"ljung_box"`
}

func (s *Server) handleAutocorrelation(w http.ResponseWriter, r *http.Request) {
	var req autocorrelationRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, nil, err)
		return
	}
	res, err := autocorrelation(req)
	respond(w, r, res, err)
}

// autocorrelation computes the sample ACF and PACF up to the requested lag,
// both starting at lag 0, and the Ljung-Box test over all lags.
func autocorrelation(req autocorrelationRequest) (*response, error) {
	n := len(req.Values)
	if req.Lags < 1 {
		return nil, badInput("lags must be at least 1")
	}
	if req.Lags >= n/2 {
		return nil, badInput("lags must be below half the sample size (n = %d)", n)
	}

	acf := sampleACF(req.Values, req.Lags)
	if math.IsNaN(acf[0]) {
		return nil, fmt.Errorf("the series %s is constant, autocorrelation is undefined", req.Variable)
	}
	pacf := durbinLevinson(acf)

	bound := distuv.UnitNormal.Quantile(0.975) / math.Sqrt(float64(n))
	var q float64
	significant := 0
	for k := 1; k <= req.Lags; k++ {
		q += acf[k] * acf[k] / float64(n-k)
		if math.Abs(acf[k]) > bound {
			significant++
		}
	}
	q *= float64(n) * float64(n+2)
	lb := ljungBox{Statistic: q, Lags: req.Lags, PValue: 1 - distuv.ChiSquared{K: float64(req.Lags)}.CDF(q)}

	notes := []string{
		fmt.Sprintf("%d of %d lags of %s fall outside the ±%.3f band.", significant, req.Lags, req.Variable, bound),
	}
	if lb.PValue < 0.05 {
		notes = append(notes, fmt.Sprintf("The Ljung-Box test rejects white noise (Q = %.2f, p = %.4f): the series is **autocorrelated**.", q, lb.PValue))
	} else {
		notes = append(notes, fmt.Sprintf("The Ljung-Box test does not reject white noise (Q = %.2f, p = %.4f).", q, lb.PValue))
	}
	return &response{
		Results:        autocorrelationResults{ACF: acf, PACF: pacf, ConfidenceBound: bound, LjungBox: lb},
		Interpretation: notes,
	}, nil
}

func sampleACF(x []float64, lags int) []float64 {
	mean := stat.Mean(x, nil)
	var c0 float64
	for _, v := range x {
		c0 += (v - mean) * (v - mean)
	}
	acf := make([]float64, lags+1)
	for k := 0; k <= lags; k++ {
		var ck float64
		for t := k; t < len(x); t++ {
			ck += (x[t] - mean) * (x[t-k] - mean)
		}
		acf[k] = ck / c0
	}
	return acf
}

// durbinLevinson derives the partial autocorrelations from the ACF.
func durbinLevinson(acf []float64) []float64 {
	lags := len(acf) - 1
	pacf := make([]float64, lags+1)
	pacf[0] = 1
	if lags == 0 {
		return pacf
	}
	phi := make([]float64, lags+1)
	prev := make([]float64, lags+1)
	phi[1] = acf[1]
	pacf[1] = acf[1]
	for k := 2; k <= lags; k++ {
		copy(prev, phi)
		num, den := acf[k], 1.0
		for j := 1; j < k; j++ {
			num -= prev[j] * acf[k-j]
			den -= prev[j] * acf[j]
		}
		phi[k] = num / den
		for j := 1; j < k; j++ {
			phi[j] = prev[j] - phi[k]*prev[k-j]
		}
		pacf[k] = phi[k]
	}
	return pacf
}
