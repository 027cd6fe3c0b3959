package app

import (
	"strconv"

	"github.com/montanaflynn/stats"

	"statwizard/domain/dataset"
)

// ColumnSummary describes one column of the dataset preview.
type ColumnSummary struct {
	Name    string
	Numeric bool
	Count   int
	Missing int
	Mean    string
	StdDev  string
	Min     string
	Max     string
}

// DatasetPreview is the table shown after a dataset is loaded.
type DatasetPreview struct {
	Dataset *dataset.Dataset
	Columns []ColumnSummary
	Rows    []dataset.Row
}

// Preview summarises a dataset and returns its first rows.
func Preview(ds *dataset.Dataset, rows int) DatasetPreview {
	p := DatasetPreview{Dataset: ds}
	if ds == nil {
		return p
	}
	p.Rows = ds.Preview(rows)
	for _, h := range ds.Headers {
		p.Columns = append(p.Columns, summarizeColumn(ds, h))
	}
	return p
}

func summarizeColumn(ds *dataset.Dataset, name string) ColumnSummary {
	cs := ColumnSummary{Name: name, Numeric: ds.IsNumeric(name)}
	if !cs.Numeric {
		for _, row := range ds.Rows {
			if row[name] == "" {
				cs.Missing++
			} else {
				cs.Count++
			}
		}
		return cs
	}
	values, missing, err := ds.Column(name)
	if err != nil {
		return cs
	}
	cs.Count = len(values)
	cs.Missing = missing
	data := stats.Float64Data(values)
	if v, err := data.Mean(); err == nil {
		cs.Mean = fmtStat(v)
	}
	if v, err := data.StandardDeviationSample(); err == nil {
		cs.StdDev = fmtStat(v)
	}
	if v, err := data.Min(); err == nil {
		cs.Min = fmtStat(v)
	}
	if v, err := data.Max(); err == nil {
		cs.Max = fmtStat(v)
	}
	return cs
}

func fmtStat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
