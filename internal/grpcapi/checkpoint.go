package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service checkpoints call.  Messages are
// google.protobuf.Struct carrying the same fields as the JSON API, so no
// generated stubs are needed.
const (
	ServiceName  = "portunus.v1.Checkpoint"
	DecideMethod = "/" + ServiceName + "/Decide"
)

type CheckpointServer interface {
	Decide(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var checkpointServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckpointServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decide", Handler: decideHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portunus/v1/checkpoint.proto",
}

func RegisterCheckpointServer(s grpc.ServiceRegistrar, srv CheckpointServer) {
	s.RegisterService(&checkpointServiceDesc, srv)
}

func decideHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckpointServer).Decide(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DecideMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckpointServer).Decide(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// CheckpointClient calls the Checkpoint service.
type CheckpointClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckpointClient(cc grpc.ClientConnInterface) *CheckpointClient {
	return &CheckpointClient{cc: cc}
}

func (c *CheckpointClient) Decide(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DecideMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
