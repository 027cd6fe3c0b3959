package analysis

import (
	"encoding/json"

	"statwizard/domain/core"
)

// Request is the transient payload of one run.
type Request struct {
	AnalysisID core.AnalysisID
	Path       string
	Body       map[string]any

	def *Definition
}

// JSON serializes the body. Map keys are emitted sorted, so the same
// selections always produce the same bytes.
func (r Request) JSON() ([]byte, error) {
	return json.Marshal(r.Body)
}

// Decode runs the analysis-specific result decoder.
func (r Request) Decode(results []byte) (Summary, error) {
	if r.def == nil || r.def.Decode == nil {
		return Summary{}, nil
	}
	return r.def.Decode(results)
}
