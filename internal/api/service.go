package api

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/internal/config"
	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/kb"
)

// NormalizerService implements NormalizerServiceServer on top of a core
// Normalizer and an optional in-memory DatasetStore.
type NormalizerService struct {
	UnimplementedNormalizerServiceServer

	normalizer *core.Normalizer
	store      *kb.DatasetStore
	log        logging.Logger

	reader   core.ReaderOptions
	maxBytes int
}

// ServiceOption configures a NormalizerService.
type ServiceOption func(*NormalizerService)

// WithReaderOptions sets the defaults used to parse request content. A
// request-level delimiter overrides the configured one.
func WithReaderOptions(opts core.ReaderOptions) ServiceOption {
	return func(s *NormalizerService) {
		s.reader = opts
	}
}

// WithMaxContentBytes caps the size of Normalize request content.
func WithMaxContentBytes(n int) ServiceOption {
	return func(s *NormalizerService) {
		s.maxBytes = n
	}
}

// NewNormalizerService wires the service. store may be nil, in which case
// dataset RPCs fail with FailedPrecondition and Normalize rejects store=true.
func NewNormalizerService(normalizer *core.Normalizer, store *kb.DatasetStore, log logging.Logger, opts ...ServiceOption) *NormalizerService {
	if log == nil {
		log = logging.Noop()
	}
	s := &NormalizerService{
		normalizer: normalizer,
		store:      store,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NormalizerService) Normalize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.normalizer == nil {
		return nil, status.Error(codes.FailedPrecondition, "normalizer is not configured")
	}
	req, err := normalizeRequestFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := ValidateNormalizeRequest(req, s.maxBytes); err != nil {
		return nil, ToStatusError(err)
	}
	if req.Store && s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "dataset store is not configured")
	}

	opts := s.reader
	if req.Delimiter != "" {
		d, err := config.ParseDelimiter(req.Delimiter)
		if err != nil {
			return nil, ToStatusError(err)
		}
		opts.Delimiter = d
	}

	readCtx, span := StartChildSpan(ctx, "API.ReadTable", "",
		attribute.Int("content_bytes", len(req.Content)))
	table, err := core.ReadTable(strings.NewReader(req.Content), opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
	if err != nil {
		s.logger(readCtx).Debug(readCtx, "request content rejected", logging.Err(err))
		return nil, ToStatusError(err)
	}

	out, err := s.normalizer.Normalize(ctx, table)
	if err != nil {
		return nil, ToStatusError(err)
	}

	resp := NormalizeResponse{Rows: out.Rows(), Counts: out.CountByType()}
	if req.Store {
		ds, err := s.store.Put(req.Name, out)
		if err != nil {
			return nil, ToStatusError(err)
		}
		resp.DatasetID = ds.ID
		s.logger(ctx).Info(ctx, "dataset stored",
			logging.DatasetID(ds.ID),
			logging.String("name", ds.Name),
			logging.Rows(out.Len()),
		)
	}

	msg, err := resp.toStruct()
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	return msg, nil
}

func (s *NormalizerService) GetDataset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureStore(); err != nil {
		return nil, err
	}
	id, err := idFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, ToStatusError(err)
	}
	msg, err := datasetToStruct(ds, true)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode dataset: %w", err))
	}
	return msg, nil
}

func (s *NormalizerService) ListDatasets(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureStore(); err != nil {
		return nil, err
	}
	datasets := s.store.List()
	items := make([]any, 0, len(datasets))
	for _, ds := range datasets {
		items = append(items, map[string]any{
			"id":        ds.ID,
			"name":      ds.Name,
			"row_count": float64(ds.Table.Len()),
		})
	}
	msg, err := structpb.NewStruct(map[string]any{"datasets": items})
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode datasets: %w", err))
	}
	return msg, nil
}

func (s *NormalizerService) DeleteDataset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureStore(); err != nil {
		return nil, err
	}
	id, err := idFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.store.Delete(id); err != nil {
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Info(ctx, "dataset deleted", logging.DatasetID(id))
	return &structpb.Struct{}, nil
}

func (s *NormalizerService) ensureStore() error {
	if s == nil || s.store == nil {
		return status.Error(codes.FailedPrecondition, "dataset store is not configured")
	}
	return nil
}

func (s *NormalizerService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}
