package mockapi

import (
	"fmt"
	"math"
	"net/http"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type controlChartRequest struct {
	Variable     string    `json:"variable"`
	ChartType    string    `json:"chart_type"`
	SubgroupSize int       `json:"subgroup_size"`
	Values       []float64 `json:"values"`
}

type chartPoint struct {
	Index        int     `json:"index"`
	Value        float64 `json:"value"`
	OutOfControl bool    `json:"out_of_control"`
}

type controlChartResults struct {
	ChartType  string       `json:"chart_type"`
	CenterLine float64      `json:"center_line"`
	UCL        float64      `json:"ucl"`
	LCL        float64      `json:"lcl"`
	Points     []chartPoint `json:"points"`
}

// a2 holds the X̄/R chart factors by subgroup size.
var a2 = map[int]float64{2: 1.880, 3: 1.023, 4: 0.729, 5: 0.577, 6: 0.483, 7: 0.419, 8: 0.373, 9: 0.337, 10: 0.308}

// d2 for moving ranges of two observations.
const d2 = 1.128

func (s *Server) handleControlChart(w http.ResponseWriter, r *http.Request) {
	var req controlChartRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, nil, err)
		return
	}
	res, err := controlChart(req)
	respond(w, r, res, err)
}

func controlChart(req controlChartRequest) (*response, error) {
	var (
		res     controlChartResults
		plotted []float64
	)
	switch req.ChartType {
	case "", "i-mr":
		if len(req.Values) < 2 {
			return nil, badInput("an individuals chart needs at least two values")
		}
		res.ChartType = "i-mr"
		plotted = req.Values
		var mr float64
		for i := 1; i < len(req.Values); i++ {
			mr += math.Abs(req.Values[i] - req.Values[i-1])
		}
		mr /= float64(len(req.Values) - 1)
		res.CenterLine = stat.Mean(req.Values, nil)
		res.UCL = res.CenterLine + 3*mr/d2
		res.LCL = res.CenterLine - 3*mr/d2
	case "xbar-r":
		factor, ok := a2[req.SubgroupSize]
		if !ok {
			return nil, badInput("subgroup_size must be between 2 and 10")
		}
		groups := len(req.Values) / req.SubgroupSize
		if groups < 2 {
			return nil, badInput("an X̄/R chart needs at least two full subgroups of %d", req.SubgroupSize)
		}
		res.ChartType = "xbar-r"
		var rbar float64
		for g := 0; g < groups; g++ {
			sub := req.Values[g*req.SubgroupSize : (g+1)*req.SubgroupSize]
			plotted = append(plotted, stat.Mean(sub, nil))
			rbar += floats.Max(sub) - floats.Min(sub)
		}
		rbar /= float64(groups)
		res.CenterLine = stat.Mean(plotted, nil)
		res.UCL = res.CenterLine + factor*rbar
		res.LCL = res.CenterLine - factor*rbar
	default:
		return nil, badInput("unknown chart_type %q", req.ChartType)
	}

	out := 0
	for i, v := range plotted {
		p := chartPoint{Index: i + 1, Value: v, OutOfControl: v > res.UCL || v < res.LCL}
		if p.OutOfControl {
			out++
		}
		res.Points = append(res.Points, p)
	}

	notes := []string{fmt.Sprintf("Centre line %.4g with control limits [%.4g, %.4g].", res.CenterLine, res.LCL, res.UCL)}
	if out == 0 {
		notes = append(notes, fmt.Sprintf("All %d points of %s are within the limits: the process looks **in control**.", len(plotted), req.Variable))
	} else {
		notes = append(notes, fmt.Sprintf("%d of %d points of %s fall outside the limits: investigate **special causes**.", out, len(plotted), req.Variable))
	}

	plot, err := lineChartPNG(plotted, res.CenterLine, res.UCL, res.LCL)
	if err != nil {
		return nil, err
	}
	return &response{Results: res, Interpretation: notes, Plot: plot}, nil
}
