package core

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

func writerFixture(t *testing.T) *CanonicalTable {
	t.Helper()
	return mustNormalize(t, buildTable(t, map[string][]*float64{
		model.ColEpoch:    {f(2451545.0)},
		model.ColRAOff:    {f(0.125)},
		model.ColRAOffErr: {nil},
		model.ColDecOff:   {f(-0.5)},
		model.ColRV:       {f(12)},
		model.ColRVErr:    {f(0.25)},
	}))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, writerFixture(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "epoch,quant1,quant1_err,quant2,quant2_err,quant_type\n" +
		"51544.5,0.125,,-0.5,,radec\n" +
		"51544.5,12,0.25,,,rv\n"
	if got := buf.String(); got != want {
		t.Fatalf("WriteCSV output:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteCSVThenReadBack(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, writerFixture(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	tbl, err := ReadTable(&buf, ReaderOptions{Columns: []string{model.ColEpoch, model.ColQuant1, model.ColQuant2}})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	q2, ok := tbl.Column(model.ColQuant2)
	if !ok {
		t.Fatalf("quant2 column missing")
	}
	if !q2.Present(0) || q2.Present(1) {
		t.Fatalf("quant2 presence = %v, want [true false]", q2.PresenceVector())
	}
	if tbl.HasColumn(model.ColQuantType) {
		t.Fatalf("quant_type should have been skipped")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, writerFixture(t)); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["quant1_err"] != nil {
		t.Fatalf("quant1_err = %v, want null", rows[0]["quant1_err"])
	}
	if rows[1]["quant_type"] != "rv" || rows[1]["quant2"] != nil {
		t.Fatalf("rv row = %v", rows[1])
	}
}

func TestWritersNonFiniteAsNull(t *testing.T) {
	tbl := mustNormalize(t, buildTable(t, map[string][]*float64{
		model.ColEpoch: {f(55000)},
		model.ColRV:    {f(math.NaN())},
		model.ColRVErr: {f(math.Inf(1))},
	}))

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, tbl); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "epoch,quant1,quant1_err,quant2,quant2_err,quant_type\n55000,,,,,rv\n"
	if got := csvBuf.String(); got != want {
		t.Fatalf("WriteCSV output:\n%s\nwant:\n%s", got, want)
	}

	var jsonBuf bytes.Buffer
	if err := WriteJSON(&jsonBuf, tbl); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0]["quant1"] != nil || rows[0]["quant1_err"] != nil || rows[0]["epoch"] != 55000.0 {
		t.Fatalf("rows = %v", rows)
	}
}
