package app

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	_ "image/png" // registers the PNG decoder excelize needs to embed plots
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
)

// ExportFileName builds a download name such as "t-test-20260301-120000.csv".
func ExportFileName(res *analysis.Result, ext string) string {
	stamp := res.ReceivedAt.UTC().Format("20060102-150405")
	return fmt.Sprintf("%s-%s.%s", res.AnalysisID, stamp, strings.TrimPrefix(ext, "."))
}

// WriteCSV writes the headline, metrics and every table of a result. Blocks
// are separated by an empty record.
func WriteCSV(w io.Writer, res *analysis.Result) error {
	if res == nil {
		return core.ErrNoResult
	}
	cw := csv.NewWriter(w)
	records := [][]string{
		{"analysis", res.AnalysisID.String()},
		{"summary", res.Summary.Headline},
		{},
		{"metric", "value", "note"},
	}
	for _, m := range res.Summary.Metrics {
		records = append(records, []string{m.Label, m.Value, m.Hint})
	}
	for _, t := range res.Summary.Tables {
		records = append(records, []string{}, []string{t.Title}, t.Columns)
		records = append(records, t.Rows...)
	}
	if len(res.Interpretation) > 0 {
		records = append(records, []string{}, []string{"interpretation"})
		for _, line := range res.Interpretation {
			records = append(records, []string{line})
		}
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with a Summary sheet, one sheet per table and
// the plot on its own sheet when present.
func WriteXLSX(w io.Writer, res *analysis.Result) error {
	if res == nil {
		return core.ErrNoResult
	}
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	rows := [][]any{
		{"Analysis", res.AnalysisID.String()},
		{"Summary", res.Summary.Headline},
		{},
		{"Metric", "Value", "Note"},
	}
	for _, m := range res.Summary.Metrics {
		rows = append(rows, []any{m.Label, m.Value, m.Hint})
	}
	if err := writeRows(f, summary, rows); err != nil {
		return err
	}
	_ = f.SetCellStyle(summary, "A4", "C4", bold)
	_ = f.SetColWidth(summary, "A", "A", 28)
	_ = f.SetColWidth(summary, "B", "C", 20)

	used := map[string]bool{summary: true}
	for i, t := range res.Summary.Tables {
		name := sheetName(t.Title, i)
		if used[name] {
			name = fmt.Sprintf("%s %d", name, i+1)
		}
		used[name] = true
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		table := make([][]any, 0, len(t.Rows)+1)
		table = append(table, toAny(t.Columns))
		for _, r := range t.Rows {
			table = append(table, toAny(r))
		}
		if err := writeRows(f, name, table); err != nil {
			return err
		}
		if len(t.Columns) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
			_ = f.SetCellStyle(name, "A1", end, bold)
		}
	}

	if res.HasPlot() {
		png, err := PlotPNG(res)
		if err != nil {
			return err
		}
		if _, err := f.NewSheet("Plot"); err != nil {
			return fmt.Errorf("create plot sheet: %w", err)
		}
		if err := f.AddPictureFromBytes("Plot", "A1", &excelize.Picture{Extension: ".png", File: png}); err != nil {
			return fmt.Errorf("embed plot: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// PlotPNG decodes the base64 plot of a result.
func PlotPNG(res *analysis.Result) ([]byte, error) {
	if res == nil {
		return nil, core.ErrNoResult
	}
	if !res.HasPlot() {
		return nil, fmt.Errorf("%w: result has no plot", core.ErrNotFound)
	}
	png, err := base64.StdEncoding.DecodeString(res.Plot)
	if err != nil {
		return nil, fmt.Errorf("decode plot: %w", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		return nil, fmt.Errorf("plot is not a PNG image")
	}
	return png, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// sheetName makes an Excel-safe sheet name: at most 31 characters, none of []:*?/\.
func sheetName(title string, i int) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" || strings.EqualFold(name, "Summary") || strings.EqualFold(name, "Plot") {
		name = fmt.Sprintf("Table %d", i+1)
	}
	if r := []rune(name); len(r) > 28 {
		name = string(r[:28])
	}
	return name
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
