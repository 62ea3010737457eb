package rpcproto

import (
	"context"

	"google.golang.org/grpc"
)

const shardManagerServiceName = "golem.ShardManager"

// ShardManagerClient is the Shard Manager's pod-facing RPC surface (§6):
// registration, routing-table queries, and heartbeats.
type ShardManagerClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	GetRoutingTable(ctx context.Context, in *GetRoutingTableRequest, opts ...grpc.CallOption) (*GetRoutingTableResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
}

type shardManagerClient struct {
	cc grpc.ClientConnInterface
}

// NewShardManagerClient wraps a dialed connection. Callers must have
// dialed with grpc.CallContentSubtype(rpcproto.CodecName) or an
// equivalent default-codec override so the JSON codec is selected.
func NewShardManagerClient(cc grpc.ClientConnInterface) ShardManagerClient {
	return &shardManagerClient{cc: cc}
}

func (c *shardManagerClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, "/"+shardManagerServiceName+"/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shardManagerClient) GetRoutingTable(ctx context.Context, in *GetRoutingTableRequest, opts ...grpc.CallOption) (*GetRoutingTableResponse, error) {
	out := new(GetRoutingTableResponse)
	if err := c.cc.Invoke(ctx, "/"+shardManagerServiceName+"/GetRoutingTable", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shardManagerClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, "/"+shardManagerServiceName+"/Heartbeat", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ShardManagerServer is the interface implementations of the Shard
// Manager's pod-facing RPCs must satisfy.
type ShardManagerServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetRoutingTable(context.Context, *GetRoutingTableRequest) (*GetRoutingTableResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
}

func _ShardManager_Register_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardManagerServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + shardManagerServiceName + "/Register"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardManagerServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShardManager_GetRoutingTable_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRoutingTableRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardManagerServer).GetRoutingTable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + shardManagerServiceName + "/GetRoutingTable"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardManagerServer).GetRoutingTable(ctx, req.(*GetRoutingTableRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShardManager_Heartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardManagerServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + shardManagerServiceName + "/Heartbeat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardManagerServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ShardManagerServiceDesc is the grpc.ServiceDesc a *grpc.Server registers
// a ShardManagerServer implementation under.
var ShardManagerServiceDesc = grpc.ServiceDesc{
	ServiceName: shardManagerServiceName,
	HandlerType: (*ShardManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: _ShardManager_Register_Handler},
		{MethodName: "GetRoutingTable", Handler: _ShardManager_GetRoutingTable_Handler},
		{MethodName: "Heartbeat", Handler: _ShardManager_Heartbeat_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "golem/shardmanager.proto",
}

// RegisterShardManagerServer registers impl with s.
func RegisterShardManagerServer(s grpc.ServiceRegistrar, impl ShardManagerServer) {
	s.RegisterService(&ShardManagerServiceDesc, impl)
}
