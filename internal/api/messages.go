package api

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/astrometry-normalizer/kb"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// NormalizeRequest carries an observation file to normalize.
type NormalizeRequest struct {
	Name      string
	Content   string
	Delimiter string // optional; see config.ParseDelimiter
	Store     bool   // keep the result in the dataset store
}

// NormalizeResponse is the canonical table plus per-type counts.
type NormalizeResponse struct {
	DatasetID string
	Rows      []model.CanonicalRow
	Counts    map[model.QuantType]int
}

// DatasetSummary describes a stored dataset without its rows.
type DatasetSummary struct {
	ID       string
	Name     string
	RowCount int
}

// DatasetResponse is a stored dataset including its rows.
type DatasetResponse struct {
	DatasetSummary
	Rows []model.CanonicalRow
}

func (r NormalizeRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"name":      r.Name,
		"content":   r.Content,
		"delimiter": r.Delimiter,
		"store":     r.Store,
	})
}

func normalizeRequestFromStruct(s *structpb.Struct) (NormalizeRequest, error) {
	if s == nil {
		return NormalizeRequest{}, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	fields := s.GetFields()
	name, err := optionalString(fields, "name")
	if err != nil {
		return NormalizeRequest{}, err
	}
	content, err := optionalString(fields, "content")
	if err != nil {
		return NormalizeRequest{}, err
	}
	delim, err := optionalString(fields, "delimiter")
	if err != nil {
		return NormalizeRequest{}, err
	}
	store := false
	if v, ok := fields["store"]; ok {
		b, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return NormalizeRequest{}, fmt.Errorf("%w: store must be a bool", ErrInvalidRequest)
		}
		store = b.BoolValue
	}
	return NormalizeRequest{Name: name, Content: content, Delimiter: delim, Store: store}, nil
}

func (r NormalizeResponse) toStruct() (*structpb.Struct, error) {
	counts := make(map[string]any, len(r.Counts))
	for q, n := range r.Counts {
		counts[q.String()] = float64(n)
	}
	return structpb.NewStruct(map[string]any{
		"dataset_id": r.DatasetID,
		"rows":       rowsToList(r.Rows),
		"counts":     counts,
	})
}

func normalizeResponseFromStruct(s *structpb.Struct) (NormalizeResponse, error) {
	fields := s.GetFields()
	id, err := optionalString(fields, "dataset_id")
	if err != nil {
		return NormalizeResponse{}, err
	}
	rows, err := rowsFromList(fields["rows"].GetListValue())
	if err != nil {
		return NormalizeResponse{}, err
	}
	counts := make(map[model.QuantType]int)
	for k, v := range fields["counts"].GetStructValue().GetFields() {
		q, err := model.ParseQuantType(k)
		if err != nil {
			return NormalizeResponse{}, err
		}
		counts[q] = int(v.GetNumberValue())
	}
	return NormalizeResponse{DatasetID: id, Rows: rows, Counts: counts}, nil
}

func idRequest(id string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"id": id})
}

func idFromStruct(s *structpb.Struct) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	id, err := optionalString(s.GetFields(), "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	return id, nil
}

func datasetToStruct(ds *kb.Dataset, withRows bool) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":        ds.ID,
		"name":      ds.Name,
		"row_count": float64(ds.Table.Len()),
	}
	if withRows {
		fields["rows"] = rowsToList(ds.Table.Rows())
	}
	return structpb.NewStruct(fields)
}

func datasetFromStruct(s *structpb.Struct) (DatasetResponse, error) {
	fields := s.GetFields()
	id, err := optionalString(fields, "id")
	if err != nil {
		return DatasetResponse{}, err
	}
	name, err := optionalString(fields, "name")
	if err != nil {
		return DatasetResponse{}, err
	}
	rows, err := rowsFromList(fields["rows"].GetListValue())
	if err != nil {
		return DatasetResponse{}, err
	}
	return DatasetResponse{
		DatasetSummary: DatasetSummary{
			ID:       id,
			Name:     name,
			RowCount: int(fields["row_count"].GetNumberValue()),
		},
		Rows: rows,
	}, nil
}

func rowsToList(rows []model.CanonicalRow) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any{
			model.ColEpoch:     nullable(&r.Epoch),
			model.ColQuant1:    nullable(&r.Quant1),
			model.ColQuant1Err: nullable(r.Quant1Err),
			model.ColQuant2:    nullable(r.Quant2),
			model.ColQuant2Err: nullable(r.Quant2Err),
			model.ColQuantType: r.QuantType.String(),
		}
	}
	return out
}

func rowsFromList(list *structpb.ListValue) ([]model.CanonicalRow, error) {
	values := list.GetValues()
	out := make([]model.CanonicalRow, 0, len(values))
	for i, v := range values {
		f := v.GetStructValue().GetFields()
		qt, err := model.ParseQuantType(f[model.ColQuantType].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, model.CanonicalRow{
			Epoch:     numberOrNaN(f[model.ColEpoch]),
			Quant1:    numberOrNaN(f[model.ColQuant1]),
			Quant1Err: numberOrNil(f[model.ColQuant1Err]),
			Quant2:    numberOrNil(f[model.ColQuant2]),
			Quant2Err: numberOrNil(f[model.ColQuant2Err]),
			QuantType: qt,
		})
	}
	return out, nil
}

// nullable maps a missing value to structpb's null. NaN and infinities have
// no JSON form and are sent as null too.
func nullable(v *float64) any {
	if v = model.Finite(v); v == nil {
		return nil
	}
	return *v
}

// numberOrNaN decodes a required number; null stands for a non-finite value.
func numberOrNaN(v *structpb.Value) float64 {
	if n := numberOrNil(v); n != nil {
		return *n
	}
	return math.NaN()
}

func numberOrNil(v *structpb.Value) *float64 {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}
	return model.Float(n.NumberValue)
}

func optionalString(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, key)
	}
}
