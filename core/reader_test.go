package core

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

func readString(t *testing.T, data string, opts ReaderOptions) *Table {
	t.Helper()
	tbl, err := ReadTable(strings.NewReader(data), opts)
	if err != nil {
		t.Fatalf("ReadTable returned error: %v", err)
	}
	return tbl
}

func TestReadTableCSVWithBlanksAndOmittedColumns(t *testing.T) {
	data := `epoch,raoff,raoff_err,decoff,decoff_err,rv,rv_err
2455000.5,1.0,0.1,2.0,0.2,,
55001,1.5,,--,,3.2,0.4
55002,,,,,--,
`
	tbl := readString(t, data, ReaderOptions{})
	if tbl.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tbl.Len())
	}
	if tbl.HasColumn(model.ColSep) {
		t.Fatalf("sep column should not exist")
	}
	dec, ok := tbl.Column(model.ColDecOff)
	if !ok {
		t.Fatalf("decoff column missing")
	}
	if got := dec.PresenceVector(); got[0] != true || got[1] != false || got[2] != false {
		t.Fatalf("decoff presence = %v, want [true false false]", got)
	}

	out, err := Normalize(tbl)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	types := out.QuantTypes()
	want := []model.QuantType{model.QuantRADec, model.QuantRV}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Fatalf("quant types = %v, want %v", types, want)
	}
	if out.Row(0).Epoch != 55000 {
		t.Fatalf("first epoch = %v, want 55000", out.Row(0).Epoch)
	}
}

func TestReadTableWhitespaceAndComments(t *testing.T) {
	data := `# HR 8799 e relative astrometry
epoch    sep    sep_err  pa     pa_err

# late epoch
57000.0  0.39   0.01     212.1  0.5
57100.0  0.40   0.01     213.0  0.5
`
	tbl := readString(t, data, ReaderOptions{})
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	if got := tbl.ColumnNames(); strings.Join(got, ",") != "epoch,sep,sep_err,pa,pa_err" {
		t.Fatalf("columns = %v", got)
	}
	pa, _ := tbl.Column(model.ColPA)
	if pa.Value(1) != 213.0 {
		t.Fatalf("pa[1] = %v, want 213", pa.Value(1))
	}
}

func TestReadTableIndentedComments(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"comma", "epoch,rv\n  # note\n55000,1\n\t# another\n55001,2\n"},
		{"whitespace", "epoch rv\n  # note\n55000 1\n\t# another\n55001 2\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tbl := readString(t, tc.data, ReaderOptions{})
			if tbl.Len() != 2 {
				t.Fatalf("Len = %d, want 2", tbl.Len())
			}
			rv, _ := tbl.Column(model.ColRV)
			if rv.Value(1) != 2 {
				t.Fatalf("rv[1] = %v, want 2", rv.Value(1))
			}
		})
	}

	_, err := ReadTable(strings.NewReader("epoch,rv\n  # note\n55000,oops\n"), ReaderOptions{})
	var ce *CellError
	if !errors.As(err, &ce) || ce.Line != 3 {
		t.Fatalf("error = %v, want *CellError on line 3", err)
	}
}

func TestReadTableTabDelimited(t *testing.T) {
	tbl := readString(t, "epoch\trv\n55000\t\n55001\t2\n", ReaderOptions{})
	rv, _ := tbl.Column(model.ColRV)
	if rv.Present(0) || !rv.Present(1) {
		t.Fatalf("rv presence = %v, want [false true]", rv.PresenceVector())
	}
}

func TestReadTableCalendarEpoch(t *testing.T) {
	tbl := readString(t, "epoch,rv\n2000-01-01T12:00:00Z,1\n2000-01-01,2\n", ReaderOptions{})
	epochs, _ := tbl.Column(model.ColEpoch)
	if got := epochs.Value(0); math.Abs(got-2451545.0) > 1e-9 {
		t.Fatalf("epoch[0] = %v, want 2451545.0", got)
	}
	if got := epochs.Value(1); math.Abs(got-2451544.5) > 1e-9 {
		t.Fatalf("epoch[1] = %v, want 2451544.5", got)
	}

	out, err := Normalize(tbl)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := out.Row(0).Epoch; math.Abs(got-51544.5) > 1e-9 {
		t.Fatalf("normalized epoch = %v, want 51544.5", got)
	}
}

func TestReadTableShortRowsArePadded(t *testing.T) {
	tbl := readString(t, "epoch,raoff,decoff\n55000,1\n", ReaderOptions{})
	dec, _ := tbl.Column(model.ColDecOff)
	if dec.Len() != 1 || dec.Present(0) {
		t.Fatalf("decoff = %v, want one absent cell", dec.PresenceVector())
	}
}

func TestReadTableCustomNullTokens(t *testing.T) {
	tbl := readString(t, "epoch,rv\n55000,NaN\n", ReaderOptions{NullTokens: []string{"", "NaN"}})
	rv, _ := tbl.Column(model.ColRV)
	if rv.Present(0) {
		t.Fatalf("NaN token should read as null")
	}
}

func TestReadTableErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "empty", data: "\n# only a comment\n", wantErr: ErrEmptyInput},
		{name: "ragged", data: "epoch,rv\n55000,1,2\n", wantErr: ErrRaggedRow},
		{name: "malformed", data: "epoch,rv\n55000,fast\n", wantErr: ErrMalformedCell},
		{name: "malformed epoch", data: "epoch,rv\nyesterday,1\n", wantErr: ErrMalformedCell},
		{name: "duplicate header", data: "epoch,rv,rv\n55000,1,2\n", wantErr: ErrColumnExists},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadTable(strings.NewReader(tc.data), ReaderOptions{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadTableCellErrorLocation(t *testing.T) {
	_, err := ReadTable(strings.NewReader("epoch,rv\n55000,1\n55001,oops\n"), ReaderOptions{})
	var ce *CellError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *CellError", err)
	}
	if ce.Line != 3 || ce.Column != model.ColRV || ce.Value != "oops" {
		t.Fatalf("CellError = %+v, want line 3 column rv value oops", ce)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	if err := os.WriteFile(path, []byte("epoch,rv,rv_err\n55000,1,0.1\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tbl, err := ReadFile(path, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"), ReaderOptions{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestReadTableColumnFilterSkipsTextColumns(t *testing.T) {
	data := "epoch,instrument,rv\n55000,NIRC2,1\n"
	if _, err := ReadTable(strings.NewReader(data), ReaderOptions{}); !errors.Is(err, ErrMalformedCell) {
		t.Fatalf("unfiltered read error = %v, want ErrMalformedCell", err)
	}
	tbl := readString(t, data, ReaderOptions{Columns: model.InputColumns()})
	if tbl.HasColumn("instrument") {
		t.Fatalf("instrument column should be dropped")
	}
	if got := tbl.ColumnNames(); strings.Join(got, ",") != "epoch,rv" {
		t.Fatalf("columns = %v, want [epoch rv]", got)
	}
}
