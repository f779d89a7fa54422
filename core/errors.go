package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for the two fatal schema conditions. Use errors.Is against a
// returned *SchemaError.
var (
	ErrMissingColumn    = errors.New("missing required column")
	ErrIncompleteColumn = errors.New("incomplete required column")
)

// SchemaErrorKind distinguishes the schema failures Normalize can report.
type SchemaErrorKind int

const (
	// MissingColumn means a required column is absent from the schema.
	MissingColumn SchemaErrorKind = iota + 1
	// IncompleteColumn means a required column has one or more null cells.
	IncompleteColumn
)

func (k SchemaErrorKind) String() string {
	switch k {
	case MissingColumn:
		return "missing_column"
	case IncompleteColumn:
		return "incomplete_column"
	default:
		return "unknown"
	}
}

// SchemaError reports a required-column violation. Rows lists the zero-based
// indices of null cells for IncompleteColumn.
type SchemaError struct {
	Kind   SchemaErrorKind
	Column string
	Rows   []int
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case IncompleteColumn:
		return fmt.Sprintf("%s %q: %d null cell(s) at row(s) %s", ErrIncompleteColumn, e.Column, len(e.Rows), formatRows(e.Rows))
	default:
		return fmt.Sprintf("%s %q", ErrMissingColumn, e.Column)
	}
}

// Unwrap exposes the sentinel matching Kind.
func (e *SchemaError) Unwrap() error {
	switch e.Kind {
	case MissingColumn:
		return ErrMissingColumn
	case IncompleteColumn:
		return ErrIncompleteColumn
	default:
		return nil
	}
}

const maxReportedRows = 10

func formatRows(rows []int) string {
	parts := make([]string, 0, maxReportedRows+1)
	for i, r := range rows {
		if i == maxReportedRows {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(r))
	}
	return strings.Join(parts, ",")
}
