package model

import (
	"fmt"
	"math"
)

// QuantType identifies which measurement set a canonical row carries.
type QuantType string

const (
	// QuantRADec carries RA offset (quant1) and Dec offset (quant2), arcseconds.
	QuantRADec QuantType = "radec"
	// QuantSepPA carries separation in arcseconds (quant1) and position angle
	// in degrees (quant2).
	QuantSepPA QuantType = "seppa"
	// QuantRV carries a radial velocity in km/s (quant1); quant2 is always null.
	QuantRV QuantType = "rv"
)

// QuantTypes returns the measurement types in emission order.
func QuantTypes() []QuantType {
	return []QuantType{QuantRADec, QuantSepPA, QuantRV}
}

// ParseQuantType validates a quant_type cell.
func ParseQuantType(s string) (QuantType, error) {
	switch q := QuantType(s); q {
	case QuantRADec, QuantSepPA, QuantRV:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quant_type %q", s)
	}
}

func (q QuantType) String() string { return string(q) }

// CanonicalRow is one normalized measurement. Epoch is always MJD. Nullable
// fields are nil when the source cell had no value.
type CanonicalRow struct {
	Epoch     float64
	Quant1    float64
	Quant1Err *float64
	Quant2    *float64
	Quant2Err *float64
	QuantType QuantType
}

// Float returns a pointer to a copy of v, for populating nullable fields.
func Float(v float64) *float64 { return &v }

// Finite returns v when it is a finite number and nil otherwise. Writers
// whose formats cannot carry NaN or infinities store those cells as null.
func Finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
