package telemetry

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/swarm-simulator/kb"
)

var (
	// ErrNotFound is used when an agent cannot be located.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is used for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoSnapshot is returned before the first snapshot is published.
	ErrNoSnapshot = errors.New("no snapshot published yet")
	// ErrNoControl is returned when the server has no run to pause.
	ErrNoControl = errors.New("run control not available")
)

// ToStatusError maps telemetry errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNoSnapshot):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrNoControl):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, kb.ErrOutOfOrder):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
