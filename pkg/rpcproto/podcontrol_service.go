package rpcproto

import (
	"context"

	"google.golang.org/grpc"
)

const podControlServiceName = "golem.PodControl"

// PodControlClient is the Shard Manager's outbound surface to a pod:
// AssignShardIds / RevokeShardIds push notifications (§4.5, §6).
type PodControlClient interface {
	AssignShardIds(ctx context.Context, in *AssignShardIdsRequest, opts ...grpc.CallOption) (*AssignShardIdsResponse, error)
	RevokeShardIds(ctx context.Context, in *RevokeShardIdsRequest, opts ...grpc.CallOption) (*RevokeShardIdsResponse, error)
}

type podControlClient struct {
	cc grpc.ClientConnInterface
}

func NewPodControlClient(cc grpc.ClientConnInterface) PodControlClient {
	return &podControlClient{cc: cc}
}

func (c *podControlClient) AssignShardIds(ctx context.Context, in *AssignShardIdsRequest, opts ...grpc.CallOption) (*AssignShardIdsResponse, error) {
	out := new(AssignShardIdsResponse)
	if err := c.cc.Invoke(ctx, "/"+podControlServiceName+"/AssignShardIds", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *podControlClient) RevokeShardIds(ctx context.Context, in *RevokeShardIdsRequest, opts ...grpc.CallOption) (*RevokeShardIdsResponse, error) {
	out := new(RevokeShardIdsResponse)
	if err := c.cc.Invoke(ctx, "/"+podControlServiceName+"/RevokeShardIds", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// PodControlServer is implemented by each executor pod to receive
// assignment pushes from the Shard Manager.
type PodControlServer interface {
	AssignShardIds(context.Context, *AssignShardIdsRequest) (*AssignShardIdsResponse, error)
	RevokeShardIds(context.Context, *RevokeShardIdsRequest) (*RevokeShardIdsResponse, error)
}

func _PodControl_AssignShardIds_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AssignShardIdsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PodControlServer).AssignShardIds(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + podControlServiceName + "/AssignShardIds"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PodControlServer).AssignShardIds(ctx, req.(*AssignShardIdsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PodControl_RevokeShardIds_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RevokeShardIdsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PodControlServer).RevokeShardIds(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + podControlServiceName + "/RevokeShardIds"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PodControlServer).RevokeShardIds(ctx, req.(*RevokeShardIdsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var PodControlServiceDesc = grpc.ServiceDesc{
	ServiceName: podControlServiceName,
	HandlerType: (*PodControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AssignShardIds", Handler: _PodControl_AssignShardIds_Handler},
		{MethodName: "RevokeShardIds", Handler: _PodControl_RevokeShardIds_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "golem/podcontrol.proto",
}

func RegisterPodControlServer(s grpc.ServiceRegistrar, impl PodControlServer) {
	s.RegisterService(&PodControlServiceDesc, impl)
}
