package core

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnExists is returned when a column name is added twice.
	ErrColumnExists = errors.New("column already exists")
	// ErrColumnLength is returned when a column does not match the table's row count.
	ErrColumnLength = errors.New("column length mismatch")
)

// ColumnSource is the read-only view of a tabular input the normalizer needs.
// A column that does not exist in the schema reports ok == false.
type ColumnSource interface {
	Len() int
	Column(name string) (*Column, bool)
}

// Table is a set of named nullable columns sharing one row count. Column
// order follows insertion.
type Table struct {
	rows    int
	names   []string
	columns map[string]*Column
}

// NewTable returns an empty table with the given number of rows.
func NewTable(rows int) *Table {
	return &Table{
		rows:    rows,
		columns: make(map[string]*Column),
	}
}

// AddColumn attaches col under name.
func (t *Table) AddColumn(name string, col *Column) error {
	if _, exists := t.columns[name]; exists {
		return fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if col.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d cells, table has %d rows", ErrColumnLength, name, col.Len(), t.rows)
	}
	t.columns[name] = col
	t.names = append(t.names, name)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Column returns the named column, reporting whether it exists in the schema.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// HasColumn reports whether name is part of the schema.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// ColumnNames returns the schema in insertion order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}
