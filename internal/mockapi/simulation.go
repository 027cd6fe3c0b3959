package mockapi

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"sort"

	"gonum.org/v1/gonum/stat"
)

type monteCarloRequest struct {
	Variable        string    `json:"variable"`
	Iterations      int       `json:"iterations"`
	Horizon         int       `json:"horizon"`
	ConfidenceLevel float64   `json:"confidence_level"`
	Values          []float64 `json:"values"`
}

type histogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

type monteCarloResults struct {
	Mean              float64        `json:"mean"`
	StdDev            float64        `json:"std_dev"`
	PercentileLower   float64        `json:"percentile_lower"`
	PercentileUpper   float64        `json:"percentile_upper"`
	ProbabilityOfLoss float64        `json:"probability_of_loss"`
	Iterations        int            `json:"iterations"`
	Horizon           int            `json:"horizon"`
	Histogram         []histogramBin `json:"histogram"`
}

const (
	maxIterations = 100000
	histogramBins = 20
)

func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req monteCarloRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, nil, err)
		return
	}
	res, err := monteCarlo(req, s.opts.Seed)
	respond(w, r, res, err)
}

// monteCarlo bootstraps cumulative outcomes over the horizon by resampling
// the observed per-period values with replacement.
func monteCarlo(req monteCarloRequest, seed uint64) (*response, error) {
	switch {
	case len(req.Values) < 3:
		return nil, badInput("at least three values are required")
	case req.Iterations < 1 || req.Iterations > maxIterations:
		return nil, badInput("iterations must be between 1 and %d", maxIterations)
	case req.Horizon < 1:
		return nil, badInput("horizon must be at least 1")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	outcomes := make([]float64, req.Iterations)
	losses := 0
	for i := range outcomes {
		var total float64
		for h := 0; h < req.Horizon; h++ {
			total += req.Values[rng.IntN(len(req.Values))]
		}
		outcomes[i] = total
		if total < 0 {
			losses++
		}
	}
	sort.Float64s(outcomes)

	alpha := alphaFor(req.ConfidenceLevel)
	mean, std := stat.MeanStdDev(outcomes, nil)
	res := monteCarloResults{
		Mean:              mean,
		StdDev:            std,
		PercentileLower:   stat.Quantile(alpha/2, stat.Empirical, outcomes, nil),
		PercentileUpper:   stat.Quantile(1-alpha/2, stat.Empirical, outcomes, nil),
		ProbabilityOfLoss: float64(losses) / float64(req.Iterations),
		Iterations:        req.Iterations,
		Horizon:           req.Horizon,
		Histogram:         histogram(outcomes, histogramBins),
	}
	if math.IsNaN(std) {
		res.StdDev = 0
	}

	notes := []string{
		fmt.Sprintf("After %d periods the cumulative %s averages **%.4g** (std. deviation %.4g).", req.Horizon, req.Variable, res.Mean, res.StdDev),
		fmt.Sprintf("%.0f%% of the %d simulated paths end between %.4g and %.4g.", (1-alpha)*100, req.Iterations, res.PercentileLower, res.PercentileUpper),
		fmt.Sprintf("The probability of ending below zero is %.1f%%.", res.ProbabilityOfLoss*100),
	}

	counts := make([]float64, len(res.Histogram))
	for i, b := range res.Histogram {
		counts[i] = float64(b.Count)
	}
	plot, err := barChartPNG(counts)
	if err != nil {
		return nil, err
	}
	return &response{Results: res, Interpretation: notes, Plot: plot}, nil
}

// histogram splits sorted values into equal-width bins. A constant sample
// ends up in a single bin.
func histogram(sorted []float64, bins int) []histogramBin {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		return []histogramBin{{Lower: lo, Upper: hi, Count: len(sorted)}}
	}
	width := (hi - lo) / float64(bins)
	out := make([]histogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, v := range sorted {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
