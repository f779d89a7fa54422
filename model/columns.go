package model

// Input column names. Header cells must match these exactly.
const (
	ColEpoch     = "epoch"
	ColRAOff     = "raoff"
	ColRAOffErr  = "raoff_err"
	ColDecOff    = "decoff"
	ColDecOffErr = "decoff_err"
	ColSep       = "sep"
	ColSepErr    = "sep_err"
	ColPA        = "pa"
	ColPAErr     = "pa_err"
	ColRV        = "rv"
	ColRVErr     = "rv_err"
)

// Canonical output column names.
const (
	ColQuant1    = "quant1"
	ColQuant1Err = "quant1_err"
	ColQuant2    = "quant2"
	ColQuant2Err = "quant2_err"
	ColQuantType = "quant_type"
)

// InputColumns lists every input column the normalizer understands, in the
// order they are documented for observation files.
func InputColumns() []string {
	return []string{
		ColEpoch,
		ColRAOff, ColRAOffErr,
		ColDecOff, ColDecOffErr,
		ColSep, ColSepErr,
		ColPA, ColPAErr,
		ColRV, ColRVErr,
	}
}

// CanonicalColumns lists the six canonical output columns in order.
func CanonicalColumns() []string {
	return []string{ColEpoch, ColQuant1, ColQuant1Err, ColQuant2, ColQuant2Err, ColQuantType}
}
