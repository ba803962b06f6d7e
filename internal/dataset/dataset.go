// Package dataset prepares sales files for upload. The backend accepts CSV
// only, so spreadsheets are converted from their first sheet.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupported is returned for files that are neither .csv nor .xlsx.
	ErrUnsupported = errors.New("dataset: unsupported file type (use .csv or .xlsx)")
	// ErrEmpty is returned when a file has no data rows under its header.
	ErrEmpty = errors.New("dataset: file needs a header row and at least one data row")
)

// maxFileSize bounds what is read into memory for upload.
const maxFileSize = 64 << 20

// Dataset is a CSV payload ready to upload.
type Dataset struct {
	Name    string // upload filename, always ending in .csv
	Data    []byte
	Header  []string
	Records int // data rows, excluding the header
}

// Reader returns a fresh reader over the CSV payload.
func (d *Dataset) Reader() io.Reader { return bytes.NewReader(d.Data) }

// Load reads and prepares the file at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()
	return Prepare(filepath.Base(path), f)
}

// Prepare validates r as the file called name and converts it to CSV.
func Prepare(name string, r io.Reader) (*Dataset, error) {
	rows, err := ReadRows(name, r)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmpty
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("dataset: encoding csv: %w", err)
	}

	return &Dataset{
		Name:    strings.TrimSuffix(name, filepath.Ext(name)) + ".csv",
		Data:    buf.Bytes(),
		Header:  rows[0],
		Records: len(rows) - 1,
	}, nil
}

// ReadRows parses a .csv or .xlsx stream into rows. Blank rows are dropped.
func ReadRows(name string, r io.Reader) ([][]string, error) {
	r = io.LimitReader(r, maxFileSize)

	var rows [][]string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("dataset: reading workbook: %w", err)
		}
		defer func() { _ = f.Close() }()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("dataset: reading first sheet: %w", err)
		}
		rows = padRows(rows)
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		var err error
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("dataset: parsing csv: %w", err)
		}
	default:
		return nil, ErrUnsupported
	}

	out := rows[:0]
	for _, row := range rows {
		if !blank(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// padRows widens every row to the header width. Spreadsheets omit trailing
// empty cells, which would otherwise shift columns in the CSV.
func padRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
