package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "astrometry.v1.NormalizerService"

const (
	NormalizeFullMethod     = "/" + ServiceName + "/Normalize"
	GetDatasetFullMethod    = "/" + ServiceName + "/GetDataset"
	ListDatasetsFullMethod  = "/" + ServiceName + "/ListDatasets"
	DeleteDatasetFullMethod = "/" + ServiceName + "/DeleteDataset"
)

// NormalizerServiceServer is the server API for the normalizer service. All
// messages are google.protobuf.Struct.
type NormalizerServiceServer interface {
	Normalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDataset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDatasets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDataset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedNormalizerServiceServer can be embedded to satisfy
// NormalizerServiceServer with Unimplemented responses.
type UnimplementedNormalizerServiceServer struct{}

func (UnimplementedNormalizerServiceServer) Normalize(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Normalize not implemented")
}

func (UnimplementedNormalizerServiceServer) GetDataset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDataset not implemented")
}

func (UnimplementedNormalizerServiceServer) ListDatasets(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListDatasets not implemented")
}

func (UnimplementedNormalizerServiceServer) DeleteDataset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteDataset not implemented")
}

// RegisterNormalizerServiceServer registers srv on s.
func RegisterNormalizerServiceServer(s grpc.ServiceRegistrar, srv NormalizerServiceServer) {
	s.RegisterService(&NormalizerServiceDesc, srv)
}

type structMethod func(NormalizerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NormalizerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NormalizerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// NormalizerServiceDesc is the grpc.ServiceDesc for the normalizer service.
var NormalizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NormalizerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Normalize",
			Handler:    unaryHandler(NormalizeFullMethod, NormalizerServiceServer.Normalize),
		},
		{
			MethodName: "GetDataset",
			Handler:    unaryHandler(GetDatasetFullMethod, NormalizerServiceServer.GetDataset),
		},
		{
			MethodName: "ListDatasets",
			Handler:    unaryHandler(ListDatasetsFullMethod, NormalizerServiceServer.ListDatasets),
		},
		{
			MethodName: "DeleteDataset",
			Handler:    unaryHandler(DeleteDatasetFullMethod, NormalizerServiceServer.DeleteDataset),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "astrometry/v1/normalizer.proto",
}
