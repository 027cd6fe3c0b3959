package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"statwizard/domain/core"
)

// Source tells where a dataset came from
type Source string

const (
	SourceUpload  Source = "upload"
	SourceExample Source = "example"
)

// Row is one record keyed by column header, cells kept as the raw text.
type Row map[string]string

// Dataset is an immutable table loaded from a file or an example.
// Its ID is the dataset identity the wizards reset on.
type Dataset struct {
	ID         core.DatasetID `json:"id"`
	Name       string         `json:"name"`
	Source     Source         `json:"source"`
	ExampleKey string         `json:"example_key,omitempty"`
	Headers    []string       `json:"headers"`
	Rows       []Row          `json:"-"`
	LoadedAt   time.Time      `json:"loaded_at"`

	numeric map[string]bool
}

// New builds a dataset with a fresh identity and classifies its columns.
func New(name string, source Source, headers []string, rows []Row) (*Dataset, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("dataset %q has no columns", name)
	}
	if len(rows) == 0 {
		return nil, core.ErrEmptyDataset
	}

	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
	}

	ds := &Dataset{
		ID:       core.NewDatasetID(),
		Name:     name,
		Source:   source,
		Headers:  append([]string(nil), headers...),
		Rows:     rows,
		LoadedAt: time.Now(),
		numeric:  make(map[string]bool, len(headers)),
	}
	for _, h := range ds.Headers {
		ds.numeric[h] = classifyNumeric(rows, h)
	}
	return ds, nil
}

// RowCount returns n, the number of records.
func (d *Dataset) RowCount() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether the header exists.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.numeric[name]
	return ok
}

// IsNumeric reports whether every non-empty cell in the column parses as a number.
func (d *Dataset) IsNumeric(name string) bool {
	if d == nil {
		return false
	}
	return d.numeric[name]
}

// NumericColumns lists numeric columns in header order.
func (d *Dataset) NumericColumns() []string {
	if d == nil {
		return nil
	}
	cols := make([]string, 0, len(d.Headers))
	for _, h := range d.Headers {
		if d.numeric[h] {
			cols = append(cols, h)
		}
	}
	return cols
}

// Column extracts the numeric values of a column, skipping blanks.
// missing is the number of blank cells that were skipped.
func (d *Dataset) Column(name string) (values []float64, missing int, err error) {
	if !d.HasColumn(name) {
		return nil, 0, fmt.Errorf("%w: %s", core.ErrColumnNotFound, name)
	}
	if !d.numeric[name] {
		return nil, 0, fmt.Errorf("%w: %s", core.ErrNonNumericColumn, name)
	}

	values = make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		cell := strings.TrimSpace(row[name])
		if cell == "" {
			missing++
			continue
		}
		v, perr := parseNumber(cell)
		if perr != nil {
			return nil, 0, fmt.Errorf("column %s: %w", name, perr)
		}
		values = append(values, v)
	}
	return values, missing, nil
}

// Records converts rows into JSON-ready objects: numeric columns become
// float64 (blank cells become null), everything else stays a string.
func (d *Dataset) Records() []map[string]any {
	out := make([]map[string]any, len(d.Rows))
	for i, row := range d.Rows {
		rec := make(map[string]any, len(d.Headers))
		for _, h := range d.Headers {
			cell := strings.TrimSpace(row[h])
			switch {
			case !d.numeric[h]:
				rec[h] = row[h]
			case cell == "":
				rec[h] = nil
			default:
				v, _ := parseNumber(cell)
				rec[h] = v
			}
		}
		out[i] = rec
	}
	return out
}

// Preview returns at most n rows for display.
func (d *Dataset) Preview(n int) []Row {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

func classifyNumeric(rows []Row, col string) bool {
	values := 0
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if _, err := parseNumber(cell); err != nil {
			return false
		}
		values++
	}
	return values > 0
}

func parseNumber(cell string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
}
