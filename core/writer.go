package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// canonicalRowJSON is the wire shape used by WriteJSON and the RPC layer.
type canonicalRowJSON struct {
	Epoch     *float64 `json:"epoch"`
	Quant1    *float64 `json:"quant1"`
	Quant1Err *float64 `json:"quant1_err"`
	Quant2    *float64 `json:"quant2"`
	Quant2Err *float64 `json:"quant2_err"`
	QuantType string   `json:"quant_type"`
}

// WriteCSV writes the canonical table with a header row. Null and non-finite
// cells are empty.
func WriteCSV(w io.Writer, t *CanonicalTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.CanonicalColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		r := t.rows[i]
		rec := []string{
			formatNullable(&r.Epoch),
			formatNullable(&r.Quant1),
			formatNullable(r.Quant1Err),
			formatNullable(r.Quant2),
			formatNullable(r.Quant2Err),
			r.QuantType.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the canonical table as a JSON array of row objects. NaN
// and infinities are written as null.
func WriteJSON(w io.Writer, t *CanonicalTable) error {
	rows := make([]canonicalRowJSON, t.Len())
	for i := range rows {
		r := t.rows[i]
		rows[i] = canonicalRowJSON{
			Epoch:     model.Finite(&r.Epoch),
			Quant1:    model.Finite(&r.Quant1),
			Quant1Err: model.Finite(r.Quant1Err),
			Quant2:    model.Finite(r.Quant2),
			Quant2Err: model.Finite(r.Quant2Err),
			QuantType: r.QuantType.String(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode canonical rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatNullable(v *float64) string {
	if v = model.Finite(v); v == nil {
		return ""
	}
	return formatFloat(*v)
}
