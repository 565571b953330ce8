package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"smallbiz_analytics/pkg/core/config"
)

// Record is one normalized row. Only non-empty cells are stored.
type Record struct {
	Line    int
	Strings map[string]string
	Numbers map[string]float64
	Dates   map[string]time.Time
}

// Has reports whether field carries a value in this row.
func (r Record) Has(field string) bool {
	if _, ok := r.Strings[field]; ok {
		return true
	}
	if _, ok := r.Numbers[field]; ok {
		return true
	}
	_, ok := r.Dates[field]
	return ok
}

// Table is a source after renaming and coercion.
type Table struct {
	Source  string
	Fields  []string // canonical fields present in the source
	Records []Record
}

// HasField reports whether the source carried a column for field.
func (t *Table) HasField(field string) bool {
	for _, f := range t.Fields {
		if f == field {
			return true
		}
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// Normalize keeps only the columns named in the schema, renames them to
// canonical fields and coerces each cell to the field's kind. Canonical
// fields with no matching column are reported once; rows with a cell that
// fails coercion are dropped and reported.
func Normalize(raw *RawTable, schema config.SourceSchema) (*Table, []Issue) {
	var issues []Issue

	index := make(map[string]int)
	for i, h := range raw.Header {
		canonical, ok := schema.Columns[h]
		if !ok {
			continue
		}
		if _, taken := index[canonical]; !taken {
			index[canonical] = i
		}
	}

	expected := make(map[string]bool)
	for _, canonical := range schema.Columns {
		expected[canonical] = true
	}
	t := &Table{Source: raw.Source}
	for field := range expected {
		if _, ok := index[field]; ok {
			t.Fields = append(t.Fields, field)
		} else {
			issues = append(issues, Issue{Source: raw.Source, Field: field, Msg: "column not found"})
		}
	}
	sort.Strings(t.Fields)
	sort.Slice(issues, func(i, j int) bool { return issues[i].Field < issues[j].Field })

	format := schema.Format
	if raw.PlainNumbers {
		format = config.FileFormat{}
	}

rows:
	for n, row := range raw.Rows {
		rec := Record{
			Line:    n + 2,
			Strings: make(map[string]string),
			Numbers: make(map[string]float64),
			Dates:   make(map[string]time.Time),
		}
		blank := true
		for _, field := range t.Fields {
			cell := strings.TrimSpace(row[index[field]])
			if cell == "" {
				continue
			}
			blank = false

			switch schema.Kind(field) {
			case config.KindDate:
				d, err := ParseDate(cell, raw.PlainNumbers)
				if err != nil {
					issues = append(issues, Issue{Source: raw.Source, Line: rec.Line, Field: field, Msg: err.Error()})
					continue rows
				}
				rec.Dates[field] = d
			case config.KindNumber:
				v, err := ParseNumber(cell, format)
				if err != nil {
					issues = append(issues, Issue{Source: raw.Source, Line: rec.Line, Field: field, Msg: err.Error()})
					continue rows
				}
				rec.Numbers[field] = v
			default:
				rec.Strings[field] = cell
			}
		}
		if !blank {
			t.Records = append(t.Records, rec)
		}
	}

	return t, issues
}

// ParseDate parses a date or timestamp and truncates it to the calendar
// day as written. Spreadsheet serials are accepted when serial is set.
func ParseDate(s string, serial bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if serial {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			d, err := excelize.ExcelDateToTime(f, false)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
			}
			return day(d), nil
		}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return day(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseNumber parses a decimal honoring the format's separators. Currency
// symbols and spaces are ignored.
func ParseNumber(s string, format config.FileFormat) (float64, error) {
	clean := strings.NewReplacer("R$", "", "$", "", " ", "", "\u00a0", "").Replace(s)

	thousands := format.Thousands
	if format.DecimalComma && thousands == "" {
		thousands = "."
	}
	if thousands != "" {
		clean = strings.ReplaceAll(clean, thousands, "")
	}
	if format.DecimalComma {
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return d.InexactFloat64(), nil
}
