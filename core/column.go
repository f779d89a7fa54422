package core

// Column is an ordered sequence of nullable float64 cells. A cell is present
// when the source held a usable value; Value of an absent cell is zero and
// carries no meaning.
type Column struct {
	values  []float64
	present []bool
}

// NewColumn returns an empty column with room for n cells.
func NewColumn(n int) *Column {
	return &Column{
		values:  make([]float64, 0, n),
		present: make([]bool, 0, n),
	}
}

// ColumnOf builds a fully present column from values.
func ColumnOf(values ...float64) *Column {
	c := NewColumn(len(values))
	for _, v := range values {
		c.Append(v)
	}
	return c
}

// NullableColumnOf builds a column from pointers; nil cells are absent.
func NullableColumnOf(values ...*float64) *Column {
	c := NewColumn(len(values))
	for _, v := range values {
		c.AppendPtr(v)
	}
	return c
}

// Append adds a present cell.
func (c *Column) Append(v float64) {
	c.values = append(c.values, v)
	c.present = append(c.present, true)
}

// AppendNull adds an absent cell.
func (c *Column) AppendNull() {
	c.values = append(c.values, 0)
	c.present = append(c.present, false)
}

// AppendPtr adds *v, or an absent cell when v is nil.
func (c *Column) AppendPtr(v *float64) {
	if v == nil {
		c.AppendNull()
		return
	}
	c.Append(*v)
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Present reports whether cell i holds a value. A nil column has no values.
func (c *Column) Present(i int) bool {
	if c == nil || i < 0 || i >= len(c.present) {
		return false
	}
	return c.present[i]
}

// Value returns the raw value of cell i, zero when absent.
func (c *Column) Value(i int) float64 {
	if !c.Present(i) {
		return 0
	}
	return c.values[i]
}

// Float returns a copy of cell i, or nil when it is absent.
func (c *Column) Float(i int) *float64 {
	if !c.Present(i) {
		return nil
	}
	v := c.values[i]
	return &v
}

// AllPresent reports whether every cell holds a value.
func (c *Column) AllPresent() bool {
	if c == nil {
		return false
	}
	for _, ok := range c.present {
		if !ok {
			return false
		}
	}
	return true
}

// PresenceVector returns a copy of the per-cell presence flags.
func (c *Column) PresenceVector() []bool {
	if c == nil {
		return nil
	}
	out := make([]bool, len(c.present))
	copy(out, c.present)
	return out
}
