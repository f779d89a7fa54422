package core

import (
	"errors"
	"reflect"
	"testing"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

func TestColumnPresence(t *testing.T) {
	col := NullableColumnOf(f(1), nil, f(3))

	if col.Len() != 3 {
		t.Fatalf("Len = %d, want 3", col.Len())
	}
	if got := col.PresenceVector(); !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Fatalf("PresenceVector = %v", got)
	}
	if col.AllPresent() {
		t.Fatalf("AllPresent = true with a null cell")
	}
	if col.Float(1) != nil || col.Value(1) != 0 {
		t.Fatalf("absent cell reported a value")
	}
	if got := col.Float(2); got == nil || *got != 3 {
		t.Fatalf("Float(2) = %v, want 3", got)
	}
	if col.Present(-1) || col.Present(3) {
		t.Fatalf("out-of-range cells must be absent")
	}
}

func TestNilColumnIsAllAbsent(t *testing.T) {
	var col *Column
	if col.Len() != 0 || col.Present(0) || col.Float(0) != nil || col.AllPresent() {
		t.Fatalf("nil column should behave as empty and absent")
	}
}

func TestTableAddColumn(t *testing.T) {
	tbl := NewTable(2)
	if err := tbl.AddColumn(model.ColEpoch, ColumnOf(1, 2)); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if err := tbl.AddColumn(model.ColEpoch, ColumnOf(1, 2)); !errors.Is(err, ErrColumnExists) {
		t.Fatalf("duplicate AddColumn error = %v, want ErrColumnExists", err)
	}
	if err := tbl.AddColumn(model.ColRV, ColumnOf(1)); !errors.Is(err, ErrColumnLength) {
		t.Fatalf("short AddColumn error = %v, want ErrColumnLength", err)
	}
	if !tbl.HasColumn(model.ColEpoch) || tbl.HasColumn(model.ColRV) {
		t.Fatalf("HasColumn mismatch: %v", tbl.ColumnNames())
	}
}

func TestCanonicalTableColumns(t *testing.T) {
	out := mustNormalize(t, buildTable(t, map[string][]*float64{
		model.ColEpoch: {f(55000), f(55001)},
		model.ColSep:   {f(1), f(2)},
		model.ColPA:    {f(10), f(20)},
		model.ColRV:    {nil, f(5)},
	}))

	q2, ok := out.Column(model.ColQuant2)
	if !ok {
		t.Fatalf("quant2 column missing")
	}
	if got := q2.PresenceVector(); !reflect.DeepEqual(got, []bool{true, true, false}) {
		t.Fatalf("quant2 presence = %v", got)
	}
	if _, ok := out.Column(model.ColQuantType); ok {
		t.Fatalf("quant_type is not a float column")
	}
	counts := out.CountByType()
	if counts[model.QuantSepPA] != 2 || counts[model.QuantRV] != 1 || counts[model.QuantRADec] != 0 {
		t.Fatalf("CountByType = %v", counts)
	}
}
