package server

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC codes. Unclassified failures are
// logged here and reach the client as a bare Internal.
func (s *FileServer) toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrPermission):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrNotRenderable), errors.Is(err, models.ErrConverterFailure):
		return status.Error(codes.FailedPrecondition, "preview unavailable: "+err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	s.logger.Error("request failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}
