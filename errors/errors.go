package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrValidation  = fmt.Errorf("validation error")
	ErrNotFound    = fmt.Errorf("not found")
	ErrConflict    = fmt.Errorf("conflict")
	ErrStorage     = fmt.Errorf("storage error")
	ErrTransport   = fmt.Errorf("transport error")
	ErrNotActive   = fmt.Errorf("connection is not active")
	ErrQueueFull   = fmt.Errorf("command queue full")
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words")
)

// Code returns the short client-facing code of a taxonomy error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}

// MapToGRPCError translates a taxonomy error into a gRPC status error.
// Errors already carrying a status are returned untouched.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrStorage):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
