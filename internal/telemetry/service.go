// Package telemetry exposes a running simulation over gRPC. Messages are
// protobuf well-known types, so no generated code is needed on either side.
package telemetry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "swarm.v1.SwarmService"

	GetSnapshotFullMethod    = "/swarm.v1.SwarmService/GetSnapshot"
	WatchSnapshotsFullMethod = "/swarm.v1.SwarmService/WatchSnapshots"
	SetPausedFullMethod      = "/swarm.v1.SwarmService/SetPaused"
	GetAgentFullMethod       = "/swarm.v1.SwarmService/GetAgent"
)

// SwarmServiceServer is the server API for the swarm telemetry service.
type SwarmServiceServer interface {
	// GetSnapshot returns the latest published snapshot.
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// WatchSnapshots streams snapshots until the run terminates or the
	// client goes away.
	WatchSnapshots(*emptypb.Empty, SwarmService_WatchSnapshotsServer) error
	// SetPaused pauses or resumes the run: {"paused": bool}.
	SetPaused(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetAgent returns one agent from the latest snapshot: {"id": number}.
	GetAgent(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedSwarmServiceServer can be embedded for forward compatibility.
type UnimplementedSwarmServiceServer struct{}

func (UnimplementedSwarmServiceServer) GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSnapshot not implemented")
}
func (UnimplementedSwarmServiceServer) WatchSnapshots(*emptypb.Empty, SwarmService_WatchSnapshotsServer) error {
	return status.Errorf(codes.Unimplemented, "method WatchSnapshots not implemented")
}
func (UnimplementedSwarmServiceServer) SetPaused(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetPaused not implemented")
}
func (UnimplementedSwarmServiceServer) GetAgent(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAgent not implemented")
}

// RegisterSwarmServiceServer registers srv on s.
func RegisterSwarmServiceServer(s grpc.ServiceRegistrar, srv SwarmServiceServer) {
	s.RegisterService(&SwarmService_ServiceDesc, srv)
}

// SwarmService_WatchSnapshotsServer is the server side of WatchSnapshots.
type SwarmService_WatchSnapshotsServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type swarmServiceWatchSnapshotsServer struct {
	grpc.ServerStream
}

func (x *swarmServiceWatchSnapshotsServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _SwarmService_GetSnapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SwarmServiceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSnapshotFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SwarmServiceServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SwarmService_WatchSnapshots_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SwarmServiceServer).WatchSnapshots(m, &swarmServiceWatchSnapshotsServer{stream})
}

func _SwarmService_SetPaused_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SwarmServiceServer).SetPaused(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetPausedFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SwarmServiceServer).SetPaused(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SwarmService_GetAgent_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SwarmServiceServer).GetAgent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAgentFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SwarmServiceServer).GetAgent(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SwarmService_ServiceDesc is the grpc.ServiceDesc for the swarm telemetry
// service.
var SwarmService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SwarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: _SwarmService_GetSnapshot_Handler},
		{MethodName: "SetPaused", Handler: _SwarmService_SetPaused_Handler},
		{MethodName: "GetAgent", Handler: _SwarmService_GetAgent_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSnapshots",
			Handler:       _SwarmService_WatchSnapshots_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "swarm/v1/swarm.proto",
}
