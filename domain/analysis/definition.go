package analysis

import (
	"fmt"
	"strconv"

	"statwizard/domain/core"
	"statwizard/domain/dataset"
)

// Input is what the rule set and the request builder see: the dataset and
// the current selections.
type Input struct {
	Dataset    *dataset.Dataset
	Selections Selections
	// Columns are the selected dataset columns; see Definition.NewInput.
	Columns []string
}

// N returns the sample size: the smallest non-missing count among the
// selected numeric columns, or the row count when none is selected.
func (in Input) N() int {
	n := -1
	for _, col := range in.Columns {
		values, _, err := in.Dataset.Column(col)
		if err != nil {
			continue
		}
		if n < 0 || len(values) < n {
			n = len(values)
		}
	}
	if n < 0 {
		return in.Dataset.RowCount()
	}
	return n
}

// Rule produces analysis-specific checks on top of the generic ones.
type Rule func(in Input) []Check

// PayloadFunc builds the request body for one analysis.
type PayloadFunc func(in Input) (map[string]any, error)

// DecodeFunc parses the `results` object of a response into a typed
// summary, failing on shapes the presentation cannot render.
type DecodeFunc func(results []byte) (Summary, error)

// Definition is the configuration of one analysis wizard.
type Definition struct {
	ID          core.AnalysisID
	Title       string
	Category    string
	Description string
	// Path is appended to the statistics API base URL.
	Path string

	// Steps are the wizard step labels, 1-based in the UI.
	Steps []string
	// RunStep is the validation step whose Next triggers the run.
	RunStep int
	// SummaryStep is where a successful run lands.
	SummaryStep int
	// MinSamples is the default minimum row count; policy may override it.
	MinSamples int

	Fields  []Field
	Rules   []Rule
	Payload PayloadFunc
	Decode  DecodeFunc
}

// NewInput pairs a dataset with selections and records which of them are
// column choices.
func (d *Definition) NewInput(ds *dataset.Dataset, sel Selections) Input {
	in := Input{Dataset: ds, Selections: sel}
	for _, f := range d.Fields {
		if f.IsColumn() {
			in.Columns = append(in.Columns, sel.All(f.Key)...)
		}
	}
	return in
}

// StepCount returns N.
func (d *Definition) StepCount() int {
	return len(d.Steps)
}

// Check validates the definition itself.
func (d *Definition) Check() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("analysis definition without ID")
	case len(d.Steps) < 2:
		return fmt.Errorf("analysis %s: at least two steps required", d.ID)
	case d.RunStep < 1 || d.RunStep >= len(d.Steps):
		return fmt.Errorf("analysis %s: run step %d out of range", d.ID, d.RunStep)
	case d.SummaryStep <= d.RunStep || d.SummaryStep > len(d.Steps):
		return fmt.Errorf("analysis %s: summary step %d must follow run step %d", d.ID, d.SummaryStep, d.RunStep)
	case d.Decode == nil:
		return fmt.Errorf("analysis %s: no result decoder", d.ID)
	}
	for _, f := range d.Fields {
		if f.Step < 1 || f.Step > d.RunStep {
			return fmt.Errorf("analysis %s: field %s edited on step %d, after the run step", d.ID, f.Key, f.Step)
		}
		for _, ex := range f.Excludes {
			if _, ok := d.Field(ex); !ok {
				return fmt.Errorf("analysis %s: field %s excludes unknown field %s", d.ID, f.Key, ex)
			}
		}
	}
	return nil
}

// Field looks up a field by key.
func (d *Definition) Field(key string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsForStep returns the fields edited on a step.
func (d *Definition) FieldsForStep(step int) []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Step == step {
			out = append(out, f)
		}
	}
	return out
}

// Candidates lists the columns a column field may choose from: numeric
// columns minus anything chosen in the fields it excludes.
func (d *Definition) Candidates(key string, in Input) []string {
	f, ok := d.Field(key)
	if !ok || !f.IsColumn() {
		return nil
	}
	taken := make(map[string]bool)
	for _, ex := range f.Excludes {
		for _, c := range in.Selections.All(ex) {
			taken[c] = true
		}
	}
	var out []string
	for _, c := range in.Dataset.NumericColumns() {
		if !taken[c] {
			out = append(out, c)
		}
	}
	return out
}

// Defaults derives the initial selections for a freshly loaded dataset:
// column fields take the first unused numeric columns in field order.
func (d *Definition) Defaults(ds *dataset.Dataset) Selections {
	sel := make(Selections)
	used := make(map[string]bool)
	numeric := ds.NumericColumns()

	for _, f := range d.Fields {
		switch f.Kind {
		case FieldColumn, FieldColumns:
			want := f.DefaultCount
			if f.Kind == FieldColumn && want > 1 {
				want = 1
			}
			var picked []string
			for _, c := range numeric {
				if len(picked) >= want {
					break
				}
				if used[c] {
					continue
				}
				used[c] = true
				picked = append(picked, c)
			}
			sel.Set(f.Key, picked...)
		default:
			if f.Default != "" {
				sel.Set(f.Key, f.Default)
			}
		}
	}
	return sel
}

// BuildRequest snapshots the inputs into a request. The selections are
// expected to have passed validation already.
func (d *Definition) BuildRequest(in Input) (Request, error) {
	build := d.Payload
	if build == nil {
		build = d.recordsPayload
	}
	body, err := build(in)
	if err != nil {
		return Request{}, fmt.Errorf("build %s request: %w", d.ID, err)
	}
	return Request{
		AnalysisID: d.ID,
		Path:       d.Path,
		Body:       body,
		def:        d,
	}, nil
}

// recordsPayload sends the raw rows of the selected columns plus every
// field value.
func (d *Definition) recordsPayload(in Input) (map[string]any, error) {
	body := d.fieldValues(in.Selections)

	var cols []string
	for _, f := range d.Fields {
		if f.IsColumn() {
			cols = append(cols, in.Selections.All(f.Key)...)
		}
	}
	records := in.Dataset.Records()
	data := make([]map[string]any, len(records))
	for i, rec := range records {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c] = rec[c]
		}
		data[i] = row
	}
	body["data"] = data
	return body, nil
}

// fieldValues converts selections into typed JSON values.
func (d *Definition) fieldValues(sel Selections) map[string]any {
	body := make(map[string]any, len(d.Fields)+1)
	for _, f := range d.Fields {
		if !sel.Has(f.Key) {
			continue
		}
		switch f.Kind {
		case FieldColumn:
			body[f.Key] = sel.Get(f.Key)
		case FieldColumns:
			body[f.Key] = append([]string(nil), sel.All(f.Key)...)
		case FieldNumber:
			if f.Integer {
				if v, ok := sel.Int(f.Key); ok {
					body[f.Key] = v
				}
			} else if v, ok := sel.Float(f.Key); ok {
				body[f.Key] = v
			}
		case FieldChoice:
			raw := sel.Get(f.Key)
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				body[f.Key] = v
			} else {
				body[f.Key] = raw
			}
		}
	}
	return body
}

// valuesPayload sends the pre-extracted values of one column field
// instead of the rows.
func (d *Definition) valuesPayload(columnField string) PayloadFunc {
	return func(in Input) (map[string]any, error) {
		body := d.fieldValues(in.Selections)
		col := in.Selections.Get(columnField)
		values, _, err := in.Dataset.Column(col)
		if err != nil {
			return nil, err
		}
		body["values"] = values
		return body, nil
	}
}
