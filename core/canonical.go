package core

import (
	"fmt"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// CanonicalTable holds normalized measurement rows. Rows are only appended
// while Normalize runs; afterwards every accessor hands out copies.
type CanonicalTable struct {
	rows []model.CanonicalRow
}

func newCanonicalTable(capacity int) *CanonicalTable {
	return &CanonicalTable{rows: make([]model.CanonicalRow, 0, capacity)}
}

func (t *CanonicalTable) add(row model.CanonicalRow) {
	t.rows = append(t.rows, row)
}

// Len returns the number of canonical rows.
func (t *CanonicalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns a copy of row i.
func (t *CanonicalTable) Row(i int) model.CanonicalRow {
	return cloneRow(t.rows[i])
}

// Rows returns a copy of all rows in emission order.
func (t *CanonicalTable) Rows() []model.CanonicalRow {
	out := make([]model.CanonicalRow, t.Len())
	for i := range out {
		out[i] = cloneRow(t.rows[i])
	}
	return out
}

// Epochs returns the epoch column (MJD).
func (t *CanonicalTable) Epochs() []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = t.rows[i].Epoch
	}
	return out
}

// QuantTypes returns the quant_type column.
func (t *CanonicalTable) QuantTypes() []model.QuantType {
	out := make([]model.QuantType, t.Len())
	for i := range out {
		out[i] = t.rows[i].QuantType
	}
	return out
}

// Column returns one of the five float columns as a nullable Column.
func (t *CanonicalTable) Column(name string) (*Column, bool) {
	var cell func(model.CanonicalRow) *float64
	switch name {
	case model.ColEpoch:
		cell = func(r model.CanonicalRow) *float64 { return model.Float(r.Epoch) }
	case model.ColQuant1:
		cell = func(r model.CanonicalRow) *float64 { return model.Float(r.Quant1) }
	case model.ColQuant1Err:
		cell = func(r model.CanonicalRow) *float64 { return r.Quant1Err }
	case model.ColQuant2:
		cell = func(r model.CanonicalRow) *float64 { return r.Quant2 }
	case model.ColQuant2Err:
		cell = func(r model.CanonicalRow) *float64 { return r.Quant2Err }
	default:
		return nil, false
	}
	col := NewColumn(t.Len())
	for _, r := range t.rows {
		col.AppendPtr(cell(r))
	}
	return col, true
}

// CountByType returns how many rows carry each measurement type.
func (t *CanonicalTable) CountByType() map[model.QuantType]int {
	counts := make(map[model.QuantType]int, 3)
	for _, q := range model.QuantTypes() {
		counts[q] = 0
	}
	for i := 0; i < t.Len(); i++ {
		counts[t.rows[i].QuantType]++
	}
	return counts
}

// InputTable relabels canonical rows onto the observation-file columns, one
// input row per canonical row. quant1 maps to raoff, sep or rv by type.
// Normalizing the result yields the same canonical rows.
func (t *CanonicalTable) InputTable() *Table {
	n := t.Len()
	cols := make(map[string]*Column, len(model.InputColumns()))
	for _, name := range model.InputColumns() {
		cols[name] = NewColumn(n)
	}
	set := func(row map[string]*float64) {
		for name, col := range cols {
			col.AppendPtr(row[name])
		}
	}
	for _, r := range t.rows {
		row := map[string]*float64{model.ColEpoch: model.Float(r.Epoch)}
		switch r.QuantType {
		case model.QuantRADec:
			row[model.ColRAOff] = model.Float(r.Quant1)
			row[model.ColRAOffErr] = r.Quant1Err
			row[model.ColDecOff] = r.Quant2
			row[model.ColDecOffErr] = r.Quant2Err
		case model.QuantSepPA:
			row[model.ColSep] = model.Float(r.Quant1)
			row[model.ColSepErr] = r.Quant1Err
			row[model.ColPA] = r.Quant2
			row[model.ColPAErr] = r.Quant2Err
		case model.QuantRV:
			row[model.ColRV] = model.Float(r.Quant1)
			row[model.ColRVErr] = r.Quant1Err
		}
		set(row)
	}

	out := NewTable(n)
	for _, name := range model.InputColumns() {
		if err := out.AddColumn(name, cols[name]); err != nil {
			panic(fmt.Sprintf("InputTable: %v", err))
		}
	}
	return out
}

func cloneRow(r model.CanonicalRow) model.CanonicalRow {
	r.Quant1Err = cloneFloat(r.Quant1Err)
	r.Quant2 = cloneFloat(r.Quant2)
	r.Quant2Err = cloneFloat(r.Quant2Err)
	return r
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
