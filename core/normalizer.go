package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

const tracerName = "github.com/signalsfoundry/astrometry-normalizer/core"

// Stats summarizes one normalization pass.
type Stats struct {
	InputRows   int
	OutputRows  int
	DroppedRows int
	ByType      map[model.QuantType]int
}

// Normalize converts an observation table into canonical rows. It fails only
// when the epoch column is missing or has null cells; every other gap is
// handled by skipping the affected measurement set.
func Normalize(in ColumnSource) (*CanonicalTable, error) {
	out, _, err := normalize(in)
	return out, err
}

func normalize(in ColumnSource) (*CanonicalTable, Stats, error) {
	n := in.Len()
	stats := Stats{InputRows: n}

	epochs, ok := in.Column(model.ColEpoch)
	if !ok {
		return nil, stats, &SchemaError{Kind: MissingColumn, Column: model.ColEpoch}
	}

	haveRA := presence(in, model.ColRAOff)
	haveDec := presence(in, model.ColDecOff)
	haveSep := presence(in, model.ColSep)
	havePA := presence(in, model.ColPA)
	haveRV := presence(in, model.ColRV)

	if missing := absentRows(epochs, n); len(missing) > 0 {
		return nil, stats, &SchemaError{Kind: IncompleteColumn, Column: model.ColEpoch, Rows: missing}
	}

	raoff, raoffErr := column(in, model.ColRAOff), column(in, model.ColRAOffErr)
	decoff, decoffErr := column(in, model.ColDecOff), column(in, model.ColDecOffErr)
	sep, sepErr := column(in, model.ColSep), column(in, model.ColSepErr)
	pa, paErr := column(in, model.ColPA), column(in, model.ColPAErr)
	rv, rvErr := column(in, model.ColRV), column(in, model.ColRVErr)

	out := newCanonicalTable(n)
	for i := 0; i < n; i++ {
		mjd := ToMJD(epochs.Value(i))
		emitted := false

		if haveRA[i] && haveDec[i] {
			out.add(model.CanonicalRow{
				Epoch:     mjd,
				Quant1:    raoff.Value(i),
				Quant1Err: raoffErr.Float(i),
				Quant2:    decoff.Float(i),
				Quant2Err: decoffErr.Float(i),
				QuantType: model.QuantRADec,
			})
			emitted = true
		}
		if haveSep[i] && havePA[i] {
			out.add(model.CanonicalRow{
				Epoch:     mjd,
				Quant1:    sep.Value(i),
				Quant1Err: sepErr.Float(i),
				Quant2:    pa.Float(i),
				Quant2Err: paErr.Float(i),
				QuantType: model.QuantSepPA,
			})
			emitted = true
		}
		if haveRV[i] {
			out.add(model.CanonicalRow{
				Epoch:     mjd,
				Quant1:    rv.Value(i),
				Quant1Err: rvErr.Float(i),
				QuantType: model.QuantRV,
			})
			emitted = true
		}

		if !emitted {
			stats.DroppedRows++
		}
	}

	stats.OutputRows = out.Len()
	stats.ByType = out.CountByType()
	return out, stats, nil
}

// presence returns the per-row presence vector for name. A column missing
// from the schema is all-absent.
func presence(in ColumnSource, name string) []bool {
	col, ok := in.Column(name)
	if !ok {
		return make([]bool, in.Len())
	}
	vec := make([]bool, in.Len())
	for i := range vec {
		vec[i] = col.Present(i)
	}
	return vec
}

// column returns the named column or nil; nil columns report every cell absent.
func column(in ColumnSource, name string) *Column {
	col, ok := in.Column(name)
	if !ok {
		return nil
	}
	return col
}

func absentRows(col *Column, n int) []int {
	var rows []int
	for i := 0; i < n; i++ {
		if !col.Present(i) {
			rows = append(rows, i)
		}
	}
	return rows
}

// MetricsRecorder receives the outcome of each normalization pass.
type MetricsRecorder interface {
	ObserveNormalization(result string, stats Stats, elapsed time.Duration)
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) NormalizerOption {
	return func(n *Normalizer) {
		n.metrics = m
	}
}

// Normalizer wraps Normalize with logging, metrics and tracing. It holds no
// per-call state and is safe for concurrent use.
type Normalizer struct {
	log     logging.Logger
	metrics MetricsRecorder
}

// NewNormalizer constructs a Normalizer. A nil logger drops all output.
func NewNormalizer(log logging.Logger, opts ...NormalizerOption) *Normalizer {
	if log == nil {
		log = logging.Noop()
	}
	n := &Normalizer{log: log}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize runs the transform on in. The context only carries logging and
// tracing values; the transform itself does not block.
func (n *Normalizer) Normalize(ctx context.Context, in ColumnSource) (*CanonicalTable, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Normalizer.Normalize",
		trace.WithAttributes(attribute.Int("input_rows", in.Len())))
	defer span.End()

	log := n.log
	if l := logging.LoggerFromContext(ctx); l != nil {
		log = l
	}

	start := time.Now()
	out, stats, err := normalize(in)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.observe("error", stats, elapsed)
		log.Warn(ctx, "normalization rejected input",
			logging.Int("input_rows", stats.InputRows),
			logging.Err(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("output_rows", stats.OutputRows),
		attribute.Int("dropped_rows", stats.DroppedRows),
	)
	n.observe("ok", stats, elapsed)
	log.Debug(ctx, "normalized observations",
		logging.Int("input_rows", stats.InputRows),
		logging.Int("output_rows", stats.OutputRows),
		logging.Int("dropped_rows", stats.DroppedRows),
		logging.Int("radec", stats.ByType[model.QuantRADec]),
		logging.Int("seppa", stats.ByType[model.QuantSepPA]),
		logging.Int("rv", stats.ByType[model.QuantRV]),
	)
	return out, nil
}

func (n *Normalizer) observe(result string, stats Stats, elapsed time.Duration) {
	if n.metrics == nil {
		return
	}
	n.metrics.ObserveNormalization(result, stats, elapsed)
}
