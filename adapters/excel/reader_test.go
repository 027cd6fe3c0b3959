package excel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"statwizard/domain/dataset"
)

func TestReadCSV(t *testing.T) {
	content := "region,sales,cost\nnorth,10.5,4\nsouth,\"1,200\",5\n,,\neast,7,\n"
	ds, err := NewDataReader(0).Read("shop.csv", strings.NewReader(content), dataset.SourceUpload)
	require.NoError(t, err)

	assert.Equal(t, "shop", ds.Name)
	assert.Equal(t, []string{"region", "sales", "cost"}, ds.Headers)
	assert.Equal(t, 3, ds.RowCount())
	assert.Equal(t, []string{"sales", "cost"}, ds.NumericColumns())

	values, missing, err := ds.Column("sales")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 1200, 7}, values)
	assert.Zero(t, missing)

	_, missing, err = ds.Column("cost")
	require.NoError(t, err)
	assert.Equal(t, 1, missing)
}

func TestReadCSVSemicolonWithBOM(t *testing.T) {
	content := "\xEF\xBB\xBFa;b\n1;2\n3;4\n"
	ds, err := NewDataReader(0).Read("data.csv", strings.NewReader(content), dataset.SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Headers)
	assert.Equal(t, []string{"a", "b"}, ds.NumericColumns())
}

func TestReadCSVNormalizesHeaders(t *testing.T) {
	content := "x,,x\n1,2,3\n"
	ds, err := NewDataReader(0).Read("h.csv", strings.NewReader(content), dataset.SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "column_2", "x_2"}, ds.Headers)
}

func TestReadRowCap(t *testing.T) {
	content := "v\n1\n2\n3\n4\n"
	ds, err := NewDataReader(2).Read("cap.csv", strings.NewReader(content), dataset.SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount())
}

func TestReadRejectsHeaderOnly(t *testing.T) {
	_, err := NewDataReader(0).Read("empty.csv", strings.NewReader("a,b\n"), dataset.SourceUpload)
	assert.Error(t, err)
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := NewDataReader(0).Read("notes.pdf", strings.NewReader("x"), dataset.SourceUpload)
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"month", "revenue"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"jan", 120.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"feb", 98}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := NewDataReader(0).Read("ledger.xlsx", bytes.NewReader(buf.Bytes()), dataset.SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "revenue"}, ds.Headers)
	assert.Equal(t, []string{"revenue"}, ds.NumericColumns())
	values, _, err := ds.Column("revenue")
	require.NoError(t, err)
	assert.Equal(t, []float64{120.5, 98}, values)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n1;2")))
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb\n")))
}
