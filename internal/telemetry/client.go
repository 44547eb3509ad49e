package telemetry

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/model"
)

// Client is a typed wrapper around the swarm telemetry service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Snapshot fetches the latest snapshot.
func (c *Client) Snapshot(ctx context.Context, opts ...grpc.CallOption) (kb.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSnapshotFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return kb.Snapshot{}, err
	}
	return DecodeSnapshot(out)
}

// Watch calls fn for every streamed snapshot until the run terminates (nil
// error), fn returns an error, or ctx ends.
func (c *Client) Watch(ctx context.Context, fn func(kb.Snapshot) error, opts ...grpc.CallOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &SwarmService_ServiceDesc.Streams[0], WatchSnapshotsFullMethod, opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		snap, err := DecodeSnapshot(msg)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

// SetPaused pauses or resumes the remote run and returns the new state.
func (c *Client) SetPaused(ctx context.Context, paused bool, opts ...grpc.CallOption) (bool, error) {
	in, err := structpb.NewStruct(map[string]any{keyPaused: paused})
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SetPausedFullMethod, in, out, opts...); err != nil {
		return false, err
	}
	return out.GetFields()[keyPaused].GetBoolValue(), nil
}

// Agent fetches one agent by ID.
func (c *Client) Agent(ctx context.Context, id model.AgentID, opts ...grpc.CallOption) (model.Agent, error) {
	in, err := structpb.NewStruct(map[string]any{keyID: float64(id)})
	if err != nil {
		return model.Agent{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetAgentFullMethod, in, out, opts...); err != nil {
		return model.Agent{}, err
	}
	return DecodeAgent(out)
}
