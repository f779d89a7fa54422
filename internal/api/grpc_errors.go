package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/internal/config"
	"github.com/signalsfoundry/astrometry-normalizer/kb"
)

// ErrInvalidRequest is a package-level sentinel used for client-side validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps normalizer errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrDatasetNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, core.ErrMissingColumn),
		errors.Is(err, core.ErrIncompleteColumn),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrRaggedRow),
		errors.Is(err, core.ErrMalformedCell),
		errors.Is(err, core.ErrColumnExists):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrContentTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
