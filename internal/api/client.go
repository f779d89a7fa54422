package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed wrapper over the Struct-based NormalizerService RPCs.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Normalize sends content for normalization.
func (c *Client) Normalize(ctx context.Context, req NormalizeRequest, opts ...grpc.CallOption) (NormalizeResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return NormalizeResponse{}, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NormalizeFullMethod, in, out, opts...); err != nil {
		return NormalizeResponse{}, err
	}
	return normalizeResponseFromStruct(out)
}

// GetDataset fetches a stored dataset with its rows.
func (c *Client) GetDataset(ctx context.Context, id string, opts ...grpc.CallOption) (DatasetResponse, error) {
	in, err := idRequest(id)
	if err != nil {
		return DatasetResponse{}, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetDatasetFullMethod, in, out, opts...); err != nil {
		return DatasetResponse{}, err
	}
	return datasetFromStruct(out)
}

// ListDatasets returns summaries of all stored datasets, oldest first.
func (c *Client) ListDatasets(ctx context.Context, opts ...grpc.CallOption) ([]DatasetSummary, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListDatasetsFullMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	values := out.GetFields()["datasets"].GetListValue().GetValues()
	summaries := make([]DatasetSummary, 0, len(values))
	for _, v := range values {
		ds, err := datasetFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ds.DatasetSummary)
	}
	return summaries, nil
}

// DeleteDataset removes a stored dataset.
func (c *Client) DeleteDataset(ctx context.Context, id string, opts ...grpc.CallOption) error {
	in, err := idRequest(id)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.cc.Invoke(ctx, DeleteDatasetFullMethod, in, new(structpb.Struct), opts...)
}
