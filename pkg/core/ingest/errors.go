package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for file extensions with no reader.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptySource is returned when a source has no header row.
	ErrEmptySource = errors.New("source has no header")
	// ErrNoData is returned when the rate service answers with no observations.
	ErrNoData = errors.New("no observations returned")
)

// SchemaError reports a field (or a balance-sheet heading for a quarter)
// that is entirely absent from a source.
type SchemaError struct {
	Source  string
	Field   string
	Quarter string
}

func (e *SchemaError) Error() string {
	if e.Quarter != "" {
		return fmt.Sprintf("%s: missing %q for quarter %q", e.Source, e.Field, e.Quarter)
	}
	return fmt.Sprintf("%s: missing required field %q", e.Source, e.Field)
}

// StatusError is a non-200 answer from the rate service.
type StatusError struct {
	Series     int
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rate series %d: service returned status %d", e.Series, e.StatusCode)
}

// Issue is a non-fatal data-quality finding. Line is 1-based and counts the
// header, so the first data row is line 2; zero means the whole source.
type Issue struct {
	Source string
	Line   int
	Field  string
	Msg    string
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d %s: %s", i.Source, i.Line, i.Field, i.Msg)
	}
	return fmt.Sprintf("%s %s: %s", i.Source, i.Field, i.Msg)
}
