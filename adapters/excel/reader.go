// Package excel turns uploaded CSV and XLSX files into datasets.
package excel

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"statwizard/domain/dataset"
)

// FileType is a supported upload format.
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// DetectFileType picks the format from the file name extension.
func DetectFileType(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return FileTypeXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (use .csv or .xlsx)", filepath.Ext(name))
	}
}

// DataReader reads CSV and XLSX content into a dataset.
type DataReader struct {
	// MaxRows caps the number of data rows; 0 means unlimited.
	MaxRows int
}

// NewDataReader creates a reader with the given row cap.
func NewDataReader(maxRows int) *DataReader {
	return &DataReader{MaxRows: maxRows}
}

// ReadFile reads a dataset from disk.
func (r *DataReader) ReadFile(path string, source dataset.Source) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return r.Read(filepath.Base(path), f, source)
}

// Read parses content whose format is inferred from name.
func (r *DataReader) Read(name string, content io.Reader, source dataset.Source) (*dataset.Dataset, error) {
	fileType, err := DetectFileType(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var rows [][]string
	switch fileType {
	case FileTypeCSV:
		rows, err = readCSV(content)
	case FileTypeXLSX:
		rows, err = readXLSX(content)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", strings.ToUpper(string(fileType)))
	}

	headers, data := r.processRows(rows)
	ds, err := dataset.New(strings.TrimSuffix(name, filepath.Ext(name)), source, headers, data)
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] %s read in %.2fms (%d columns, %d rows, %d numeric)",
		name, float64(time.Since(start).Nanoseconds())/1e6, len(headers), ds.RowCount(), len(ds.NumericColumns()))
	return ds, nil
}

func readCSV(content io.Reader) ([][]string, error) {
	br := bufio.NewReader(content)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	first, _ := br.Peek(4096)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(first)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the header line.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// readXLSX reads the first sheet of the workbook.
func readXLSX(content io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// processRows normalizes headers and drops blank lines. Blank headers get a
// positional name and repeated headers a numeric suffix.
func (r *DataReader) processRows(rows [][]string) ([]string, []dataset.Row) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	seen := make(map[string]int, len(headerRow))
	for i, h := range headerRow {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		}
		seen[h]++
		headers[i] = h
	}

	data := make([]dataset.Row, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		if r.MaxRows > 0 && len(data) >= r.MaxRows {
			log.Printf("[DataReader] row cap %d reached, remaining rows ignored", r.MaxRows)
			break
		}
		row := make(dataset.Row, len(headers))
		blank := true
		for j, cell := range raw {
			if j >= len(headers) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			row[headers[j]] = cell
		}
		if blank {
			continue
		}
		data = append(data, row)
	}
	return headers, data
}
