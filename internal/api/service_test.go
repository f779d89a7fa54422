package api

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/kb"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

const sampleObservations = `epoch,raoff,raoff_err,decoff,decoff_err,sep,sep_err,pa,pa_err,rv,rv_err
2451545.0,0.125,0.01,-0.5,0.02,0.6,0.03,166,0.5,12.0,0.25
51545.0,,,,,,,,,3.5,
51546.0,,,,,,,,,,
`

func newServiceForTest(opts ...ServiceOption) (*NormalizerService, *kb.DatasetStore) {
	store := kb.NewDatasetStore()
	return NewNormalizerService(core.NewNormalizer(nil), store, nil, opts...), store
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestNormalizeReturnsCanonicalRows(t *testing.T) {
	svc, store := newServiceForTest()

	out, err := svc.Normalize(context.Background(), mustStruct(t, map[string]any{
		"content": sampleObservations,
	}))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	resp, err := normalizeResponseFromStruct(out)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DatasetID != "" {
		t.Fatalf("DatasetID = %q, want empty when store is unset", resp.DatasetID)
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len = %d, want 0", store.Len())
	}
	if len(resp.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(resp.Rows))
	}

	wantTypes := []model.QuantType{model.QuantRADec, model.QuantSepPA, model.QuantRV, model.QuantRV}
	for i, want := range wantTypes {
		if resp.Rows[i].QuantType != want {
			t.Fatalf("row %d quant_type = %s, want %s", i, resp.Rows[i].QuantType, want)
		}
	}
	if resp.Rows[0].Epoch != 51544.5 {
		t.Fatalf("row 0 epoch = %v, want 51544.5", resp.Rows[0].Epoch)
	}
	if resp.Rows[2].Quant2 != nil {
		t.Fatalf("rv row quant2 = %v, want nil", *resp.Rows[2].Quant2)
	}
	if resp.Rows[3].Quant1Err != nil {
		t.Fatalf("rv row without error has quant1_err = %v", *resp.Rows[3].Quant1Err)
	}
	if resp.Counts[model.QuantRV] != 2 || resp.Counts[model.QuantRADec] != 1 {
		t.Fatalf("counts = %v", resp.Counts)
	}
}

func TestNormalizeStoresDataset(t *testing.T) {
	svc, store := newServiceForTest()

	out, err := svc.Normalize(context.Background(), mustStruct(t, map[string]any{
		"name":    "HD 1234",
		"content": sampleObservations,
		"store":   true,
	}))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	id := out.GetFields()["dataset_id"].GetStringValue()
	if id == "" {
		t.Fatalf("expected dataset_id in response")
	}
	ds, err := store.Get(id)
	if err != nil {
		t.Fatalf("store.Get(%s): %v", id, err)
	}
	if ds.Name != "HD 1234" || ds.Table.Len() != 4 {
		t.Fatalf("stored dataset = %+v (rows %d)", ds, ds.Table.Len())
	}
}

func TestNormalizeRequestDelimiterOverride(t *testing.T) {
	svc, _ := newServiceForTest(WithReaderOptions(core.ReaderOptions{Delimiter: ','}))

	out, err := svc.Normalize(context.Background(), mustStruct(t, map[string]any{
		"content":   "epoch;rv\n55000;1.5\n",
		"delimiter": "semicolon",
	}))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	rows := out.GetFields()["rows"].GetListValue().GetValues()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestNormalizeErrorCodes(t *testing.T) {
	svc, _ := newServiceForTest(WithMaxContentBytes(64))

	tests := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{name: "no content", fields: map[string]any{}, code: codes.InvalidArgument},
		{name: "content wrong type", fields: map[string]any{"content": 12.0}, code: codes.InvalidArgument},
		{name: "store wrong type", fields: map[string]any{"content": "epoch\n1\n", "store": "yes"}, code: codes.InvalidArgument},
		{name: "missing epoch", fields: map[string]any{"content": "rv\n1\n"}, code: codes.InvalidArgument},
		{name: "incomplete epoch", fields: map[string]any{"content": "epoch,rv\n,1\n"}, code: codes.InvalidArgument},
		{name: "malformed cell", fields: map[string]any{"content": "epoch,rv\n55000,fast\n"}, code: codes.InvalidArgument},
		{name: "bad delimiter", fields: map[string]any{"content": "epoch\n1\n", "delimiter": "\"\""}, code: codes.InvalidArgument},
		{name: "store without name", fields: map[string]any{"content": "epoch\n1\n", "store": true}, code: codes.InvalidArgument},
		{name: "too large", fields: map[string]any{"content": sampleObservations}, code: codes.ResourceExhausted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Normalize(context.Background(), mustStruct(t, tc.fields))
			if code := status.Code(err); code != tc.code {
				t.Fatalf("Normalize code = %v (%v), want %v", code, err, tc.code)
			}
		})
	}
}

func TestDatasetRPCs(t *testing.T) {
	svc, store := newServiceForTest()
	ctx := context.Background()

	in, err := core.ReadTable(strings.NewReader(sampleObservations), core.ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	canon, err := core.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	ds, err := store.Put("first", canon)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := svc.GetDataset(ctx, mustStruct(t, map[string]any{"id": ds.ID}))
	if err != nil {
		t.Fatalf("GetDataset error: %v", err)
	}
	decoded, err := datasetFromStruct(got)
	if err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if decoded.ID != ds.ID || decoded.Name != "first" || decoded.RowCount != 4 || len(decoded.Rows) != 4 {
		t.Fatalf("GetDataset = %+v", decoded.DatasetSummary)
	}

	list, err := svc.ListDatasets(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("ListDatasets error: %v", err)
	}
	if n := len(list.GetFields()["datasets"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("ListDatasets len = %d, want 1", n)
	}

	if _, err := svc.DeleteDataset(ctx, mustStruct(t, map[string]any{"id": ds.ID})); err != nil {
		t.Fatalf("DeleteDataset error: %v", err)
	}
	if _, err := svc.GetDataset(ctx, mustStruct(t, map[string]any{"id": ds.ID})); status.Code(err) != codes.NotFound {
		t.Fatalf("GetDataset after delete code = %v, want NotFound", status.Code(err))
	}
	if _, err := svc.DeleteDataset(ctx, mustStruct(t, map[string]any{"id": ds.ID})); status.Code(err) != codes.NotFound {
		t.Fatalf("second DeleteDataset code = %v, want NotFound", status.Code(err))
	}
	if _, err := svc.GetDataset(ctx, &structpb.Struct{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("GetDataset without id code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewNormalizerService(core.NewNormalizer(nil), nil, nil)
	ctx := context.Background()

	if _, err := svc.ListDatasets(ctx, &structpb.Struct{}); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("ListDatasets code = %v, want FailedPrecondition", status.Code(err))
	}
	_, err := svc.Normalize(ctx, mustStruct(t, map[string]any{
		"name":    "x",
		"content": sampleObservations,
		"store":   true,
	}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Normalize with store code = %v, want FailedPrecondition", status.Code(err))
	}
}
