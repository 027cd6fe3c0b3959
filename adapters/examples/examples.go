// Package examples ships the canned datasets users can load instead of
// uploading a file.
package examples

import (
	"embed"
	"fmt"
	"path"
	"sort"

	"statwizard/adapters/excel"
	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
)

//go:embed data/*.csv
var files embed.FS

// Example describes one canned dataset.
type Example struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	File        string          `json:"file"`
	Suggested   core.AnalysisID `json:"suggested_analysis"`
}

var builtin = []Example{
	{
		Key:         "housing",
		Title:       "House prices",
		Description: "60 sales with floor area, bedrooms, age and distance to the city centre.",
		File:        "housing.csv",
		Suggested:   analysis.LinearRegression,
	},
	{
		Key:         "exam-scores",
		Title:       "Exam scores by teaching method",
		Description: "36 students scored under two teaching methods.",
		File:        "exam_scores.csv",
		Suggested:   analysis.TTest,
	},
	{
		Key:         "monthly-sales",
		Title:       "Monthly unit sales",
		Description: "Four years of monthly sales with a yearly seasonal cycle.",
		File:        "monthly_sales.csv",
		Suggested:   analysis.Autocorrelation,
	},
	{
		Key:         "fill-weights",
		Title:       "Bottle fill weights",
		Description: "100 consecutive fill weights from two filling lines, with a short shift near the end.",
		File:        "fill_weights.csv",
		Suggested:   analysis.ControlChart,
	},
	{
		Key:         "daily-returns",
		Title:       "Daily returns",
		Description: "120 trading days of percentage returns and volume.",
		File:        "daily_returns.csv",
		Suggested:   analysis.MonteCarlo,
	},
}

// Loader reads examples from the embedded files.
type Loader struct {
	reader *excel.DataReader
	byKey  map[string]Example
}

// NewLoader creates a loader over the built-in examples.
func NewLoader() *Loader {
	l := &Loader{reader: excel.NewDataReader(0), byKey: make(map[string]Example, len(builtin))}
	for _, ex := range builtin {
		l.byKey[ex.Key] = ex
	}
	return l
}

// List returns the examples sorted by title.
func (l *Loader) List() []Example {
	out := make([]Example, 0, len(l.byKey))
	for _, ex := range l.byKey {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// ForAnalysis returns the examples suggested for an analysis.
func (l *Loader) ForAnalysis(id core.AnalysisID) []Example {
	var out []Example
	for _, ex := range l.List() {
		if ex.Suggested == id {
			out = append(out, ex)
		}
	}
	return out
}

// Get returns the metadata of one example.
func (l *Loader) Get(key string) (Example, error) {
	ex, ok := l.byKey[key]
	if !ok {
		return Example{}, fmt.Errorf("%w: %s", core.ErrExampleNotFound, key)
	}
	return ex, nil
}

// Load parses an example into a dataset. Every call yields a new dataset
// identity, so loading an example always resets the wizards bound to it.
func (l *Loader) Load(key string) (*dataset.Dataset, error) {
	ex, err := l.Get(key)
	if err != nil {
		return nil, err
	}
	f, err := files.Open(path.Join("data", ex.File))
	if err != nil {
		return nil, fmt.Errorf("open example %s: %w", key, err)
	}
	defer f.Close()

	ds, err := l.reader.Read(ex.File, f, dataset.SourceExample)
	if err != nil {
		return nil, fmt.Errorf("parse example %s: %w", key, err)
	}
	ds.Name = ex.Title
	ds.ExampleKey = ex.Key
	return ds, nil
}
