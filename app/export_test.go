package app

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
)

// 1x1 transparent PNG
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func sampleResult() *analysis.Result {
	return &analysis.Result{
		AnalysisID: analysis.TTest,
		Summary: analysis.Summary{
			Headline: "The difference is significant at the 5% level",
			Metrics: []analysis.Metric{
				{Label: "t statistic", Value: "2.310"},
				{Label: "p-value", Value: "0.0241", Hint: "two-sided"},
			},
			Tables: []analysis.Table{{
				Title:   "Group statistics",
				Columns: []string{"group", "mean", "sd"},
				Rows:    [][]string{{"method_a", "72.1", "9.0"}, {"method_b", "76.4", "8.5"}},
			}},
		},
		Interpretation: []string{"Method B scores higher."},
		ReceivedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis", "t-test"}, records[0])
	assert.Contains(t, records, []string{"p-value", "0.0241", "two-sided"})
	assert.Contains(t, records, []string{"group", "mean", "sd"})
	assert.Contains(t, records, []string{"method_b", "76.4", "8.5"})
	assert.Equal(t, []string{"Method B scores higher."}, records[len(records)-1])
}

func TestExportsRequireResult(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteCSV(&buf, nil), core.ErrNoResult)
	assert.ErrorIs(t, WriteXLSX(&buf, nil), core.ErrNoResult)
	_, err := PlotPNG(nil)
	assert.ErrorIs(t, err, core.ErrNoResult)
}

func TestWriteXLSX(t *testing.T) {
	res := sampleResult()
	res.Plot = pixelPNG

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, res))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Group statistics", "Plot"}, f.GetSheetList())

	v, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Headline, v)

	rows, err := f.GetRows("Group statistics")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"group", "mean", "sd"}, {"method_a", "72.1", "9.0"}, {"method_b", "76.4", "8.5"}}, rows)

	pics, err := f.GetPictures("Plot", "A1")
	require.NoError(t, err)
	assert.Len(t, pics, 1)
}

func TestPlotPNG(t *testing.T) {
	res := sampleResult()
	_, err := PlotPNG(res)
	assert.True(t, core.IsNotFound(err))

	res.Plot = pixelPNG
	png, err := PlotPNG(res)
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(pixelPNG)
	assert.Equal(t, raw, png)

	res.Plot = base64.StdEncoding.EncodeToString([]byte("GIF89a"))
	_, err = PlotPNG(res)
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Coefficients-SE", sheetName("Coefficients/SE", 0))
	assert.Equal(t, "Table 2", sheetName("Summary", 1))
	assert.Len(t, []rune(sheetName("A very long table title that exceeds the limit", 0)), 28)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "t-test-20260301-120000.csv", ExportFileName(sampleResult(), "csv"))
}
