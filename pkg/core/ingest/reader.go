package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"smallbiz_analytics/pkg/core/config"
)

// RawTable is a source exactly as read: a header and string cells.
// PlainNumbers marks sources whose numeric cells are already in canonical
// form (spreadsheets), so locale separators must not be applied.
type RawTable struct {
	Source       string
	Header       []string
	Rows         [][]string
	PlainNumbers bool
}

// Column returns the index of a header, or -1.
func (t *RawTable) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ReadFile dispatches on the file extension.
func ReadFile(path, source string, format config.FileFormat) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f, source, format)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, source)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// ReadCSV reads delimited text. Short rows are padded to the header width.
func ReadCSV(r io.Reader, source string, format config.FileFormat) (*RawTable, error) {
	cr := csv.NewReader(r)
	if format.Delimiter != "" {
		cr.Comma = []rune(format.Delimiter)[0]
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", source, err)
	}

	t := &RawTable{Source: source, Header: cleanHeader(header)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		t.Rows = append(t.Rows, pad(rec, len(t.Header)))
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook with raw cell values.
func ReadXLSX(path, source string) (*RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return readWorkbook(f, source)
}

// ReadXLSXFrom is ReadXLSX over an already open stream.
func ReadXLSXFrom(r io.Reader, source string) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open workbook: %w", source, err)
	}
	defer f.Close()
	return readWorkbook(f, source)
}

func readWorkbook(f *excelize.File, source string) (*RawTable, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", source, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptySource)
	}

	t := &RawTable{Source: source, Header: cleanHeader(rows[0]), PlainNumbers: true}
	for _, row := range rows[1:] {
		t.Rows = append(t.Rows, pad(row, len(t.Header)))
	}
	return t, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func pad(rec []string, width int) []string {
	if len(rec) >= width {
		return rec[:width]
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}
