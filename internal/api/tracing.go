package api

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/internal/observability"
)

const tracerName = "github.com/signalsfoundry/astrometry-normalizer/internal/api"

// Span attribute keys describing the dataset an RPC touched.
const (
	attrDatasetID    = attribute.Key("dataset_id")
	attrDatasetName  = attribute.Key("normalizer.dataset_name")
	attrContentBytes = attribute.Key("normalizer.content_bytes")
	attrStore        = attribute.Key("normalizer.store")
	attrRowCount     = attribute.Key("normalizer.row_count")
	attrDatasetCount = attribute.Key("normalizer.dataset_count")
	attrStatusCode   = attribute.Key("rpc.grpc.status_code")
)

// TracingUnaryServerInterceptor names RPC spans "API/<service>/<method>" and
// tags them with the dataset the call read or produced. It starts a server
// span when the otelgrpc stats handler is not installed.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		spanName := fmt.Sprintf("API/%s/%s", service, method)
		span := trace.SpanFromContext(ctx)
		created := false
		if !span.SpanContext().IsValid() {
			ctx, span = tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(spanName)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		}
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			attrs = append(attrs, attribute.String("request_id", reqID))
		}
		if in, ok := req.(*structpb.Struct); ok {
			attrs = append(attrs, requestAttributes(info.FullMethod, in)...)
		}
		span.SetAttributes(attrs...)

		resp, err := handler(ctx, req)
		span.SetAttributes(attrStatusCode.Int(int(status.Code(err))))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, status.Convert(err).Message())
		} else if out, ok := resp.(*structpb.Struct); ok {
			span.SetAttributes(responseAttributes(info.FullMethod, out)...)
		}

		if created {
			span.End()
		}
		return resp, err
	}
}

func requestAttributes(fullMethod string, in *structpb.Struct) []attribute.KeyValue {
	fields := in.GetFields()
	switch fullMethod {
	case NormalizeFullMethod:
		attrs := []attribute.KeyValue{
			attrContentBytes.Int(len(fields["content"].GetStringValue())),
			attrStore.Bool(fields["store"].GetBoolValue()),
		}
		if name := fields["name"].GetStringValue(); name != "" {
			attrs = append(attrs, attrDatasetName.String(name))
		}
		return attrs
	case GetDatasetFullMethod, DeleteDatasetFullMethod:
		if id := fields["id"].GetStringValue(); id != "" {
			return []attribute.KeyValue{attrDatasetID.String(id)}
		}
	}
	return nil
}

func responseAttributes(fullMethod string, out *structpb.Struct) []attribute.KeyValue {
	fields := out.GetFields()
	switch fullMethod {
	case NormalizeFullMethod:
		attrs := []attribute.KeyValue{attrRowCount.Int(len(fields["rows"].GetListValue().GetValues()))}
		if id := fields["dataset_id"].GetStringValue(); id != "" {
			attrs = append(attrs, attrDatasetID.String(id))
		}
		return attrs
	case GetDatasetFullMethod:
		return []attribute.KeyValue{attrRowCount.Int(int(fields["row_count"].GetNumberValue()))}
	case ListDatasetsFullMethod:
		return []attribute.KeyValue{attrDatasetCount.Int(len(fields["datasets"].GetListValue().GetValues()))}
	}
	return nil
}

// StartChildSpan starts a child span for internal operations within handlers.
func StartChildSpan(ctx context.Context, name, datasetID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+1)
	if datasetID != "" {
		attrs = append(attrs, attrDatasetID.String(datasetID))
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
