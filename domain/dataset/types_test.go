package dataset

import (
	"errors"
	"testing"

	"statwizard/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	rows := []Row{
		{"region": "north", "sales": "10.5", "units": "3", "notes": ""},
		{"region": "south", "sales": "1,200", "units": "", "notes": "promo"},
		{"region": "east", "sales": "7", "units": "5", "notes": ""},
	}
	ds, err := New("sales", SourceUpload, []string{"region", "sales", "units", "notes"}, rows)
	require.NoError(t, err)
	return ds
}

func TestNumericColumnsInHeaderOrder(t *testing.T) {
	ds := sampleDataset(t)
	assert.Equal(t, []string{"sales", "units"}, ds.NumericColumns())
	assert.True(t, ds.IsNumeric("units"))
	assert.False(t, ds.IsNumeric("region"))
	assert.False(t, ds.IsNumeric("notes"))
	assert.Equal(t, 3, ds.RowCount())
}

func TestColumnSkipsBlanks(t *testing.T) {
	ds := sampleDataset(t)

	values, missing, err := ds.Column("units")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, values)
	assert.Equal(t, 1, missing)

	values, _, err = ds.Column("sales")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 1200, 7}, values)
}

func TestColumnErrors(t *testing.T) {
	ds := sampleDataset(t)

	_, _, err := ds.Column("missing")
	assert.True(t, errors.Is(err, core.ErrColumnNotFound))

	_, _, err = ds.Column("region")
	assert.True(t, errors.Is(err, core.ErrNonNumericColumn))
}

func TestRecords(t *testing.T) {
	ds := sampleDataset(t)
	recs := ds.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, 10.5, recs[0]["sales"])
	assert.Nil(t, recs[1]["units"])
	assert.Equal(t, "south", recs[1]["region"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("empty", SourceUpload, []string{"a"}, nil)
	assert.ErrorIs(t, err, core.ErrEmptyDataset)

	_, err = New("dup", SourceUpload, []string{"a", "a"}, []Row{{"a": "1"}})
	assert.Error(t, err)
}

func TestEachLoadHasNewIdentity(t *testing.T) {
	a := sampleDataset(t)
	b := sampleDataset(t)
	assert.NotEqual(t, a.ID, b.ID)
}
