package telemetry

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/kb"
)

// RunControl is the part of a running simulation the service can steer.
type RunControl interface {
	Pause()
	Resume()
	Paused() bool
}

// Service implements SwarmServiceServer over a snapshot store.
type Service struct {
	UnimplementedSwarmServiceServer

	store   *kb.SnapshotStore
	control RunControl
	log     logging.Logger
}

var _ SwarmServiceServer = (*Service)(nil)

// NewService constructs a Service. control may be nil, in which case
// SetPaused fails with FailedPrecondition.
func NewService(store *kb.SnapshotStore, control RunControl, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{store: store, control: control, log: log}
}

// GetSnapshot returns the latest published snapshot.
func (s *Service) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := logging.LoggerFromContext(ctx, s.log)

	snap, ok := s.store.Latest()
	if !ok {
		return nil, ToStatusError(ErrNoSnapshot)
	}
	out, err := EncodeSnapshot(snap)
	if err != nil {
		log.Error(ctx, "snapshot encode failed", logging.Int("tick", snap.Tick), logging.Err(err))
		return nil, ToStatusError(err)
	}
	log.Debug(ctx, "GetSnapshot completed", logging.Int("tick", snap.Tick), logging.Int("agents", len(snap.Agents)))
	return out, nil
}

// WatchSnapshots streams snapshots, newest first when the client lags,
// and returns once an inactive snapshot has been sent.
func (s *Service) WatchSnapshots(_ *emptypb.Empty, stream SwarmService_WatchSnapshotsServer) error {
	ctx := stream.Context()
	log := logging.LoggerFromContext(ctx, s.log)

	sent := 0
	for snap := range s.store.Watch(ctx) {
		out, err := EncodeSnapshot(snap)
		if err != nil {
			return ToStatusError(err)
		}
		if err := stream.Send(out); err != nil {
			log.Debug(ctx, "watch stream send failed", logging.Int("sent", sent), logging.Err(err))
			return err
		}
		sent++
		if !snap.Active {
			log.Debug(ctx, "watch stream finished with run", logging.Int("sent", sent))
			return nil
		}
	}
	return ToStatusError(ctx.Err())
}

// SetPaused pauses or resumes the run and reports the resulting state.
func (s *Service) SetPaused(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := logging.LoggerFromContext(ctx, s.log)

	paused, err := pausedArg(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if s.control == nil {
		return nil, ToStatusError(ErrNoControl)
	}
	if paused {
		s.control.Pause()
	} else {
		s.control.Resume()
	}
	log.Info(ctx, "pause state set over RPC", logging.Bool("paused", paused))

	out, err := structpb.NewStruct(map[string]any{keyPaused: s.control.Paused()})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// GetAgent returns one agent, neutralized or not, from the latest snapshot.
func (s *Service) GetAgent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := agentIDArg(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	snap, ok := s.store.Latest()
	if !ok {
		return nil, ToStatusError(ErrNoSnapshot)
	}
	a, ok := snap.Agent(id)
	if !ok {
		return nil, ToStatusError(fmt.Errorf("agent %d: %w", id, ErrNotFound))
	}
	out, err := EncodeAgent(a)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}
