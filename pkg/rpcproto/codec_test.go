package rpcproto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := &RegisterRequest{Pod: Pod{PodID: "pod-1", Host: "10.0.0.1", Port: 9090}}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(RegisterRequest)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in.Pod, out.Pod)
}

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "golem-json", jsonCodec{}.Name())
	assert.Equal(t, CodecName, jsonCodec{}.Name())
}

func TestShardManagerServiceDescMethodNames(t *testing.T) {
	names := make([]string, 0, len(ShardManagerServiceDesc.Methods))
	for _, m := range ShardManagerServiceDesc.Methods {
		names = append(names, m.MethodName)
	}
	assert.ElementsMatch(t, []string{"Register", "GetRoutingTable", "Heartbeat"}, names)
	assert.Empty(t, ShardManagerServiceDesc.Streams)
}

func TestPodControlServiceDescMethodNames(t *testing.T) {
	names := make([]string, 0, len(PodControlServiceDesc.Methods))
	for _, m := range PodControlServiceDesc.Methods {
		names = append(names, m.MethodName)
	}
	assert.ElementsMatch(t, []string{"AssignShardIds", "RevokeShardIds"}, names)
}

func TestExecutorServiceDescHasTwelveRPCs(t *testing.T) {
	assert.Len(t, ExecutorServiceDesc.Methods, 10)
	assert.Len(t, ExecutorServiceDesc.Streams, 2)

	streamNames := make([]string, 0, 2)
	for _, s := range ExecutorServiceDesc.Streams {
		streamNames = append(streamNames, s.StreamName)
		assert.True(t, s.ServerStreams)
	}
	assert.ElementsMatch(t, []string{"ConnectWorker", "GetOplog"}, streamNames)
}

type fakeShardManagerServer struct {
	registered *RegisterRequest
}

func (f *fakeShardManagerServer) Register(ctx context.Context, in *RegisterRequest) (*RegisterResponse, error) {
	f.registered = in
	return &RegisterResponse{AssignmentGeneration: 1, AssignedShards: []uint32{3, 7}}, nil
}

func (f *fakeShardManagerServer) GetRoutingTable(ctx context.Context, in *GetRoutingTableRequest) (*GetRoutingTableResponse, error) {
	return &GetRoutingTableResponse{Generation: 1}, nil
}

func (f *fakeShardManagerServer) Heartbeat(ctx context.Context, in *HeartbeatRequest) (*HeartbeatResponse, error) {
	return &HeartbeatResponse{}, nil
}

func TestRegisterHandlerDecodesAndDispatchesWithoutInterceptor(t *testing.T) {
	srv := &fakeShardManagerServer{}
	req := &RegisterRequest{Pod: Pod{PodID: "pod-9"}}

	out, err := _ShardManager_Register_Handler(srv, context.Background(), func(v interface{}) error {
		*(v.(*RegisterRequest)) = *req
		return nil
	}, nil)
	require.NoError(t, err)

	resp := out.(*RegisterResponse)
	assert.Equal(t, uint64(1), resp.AssignmentGeneration)
	assert.Equal(t, []uint32{3, 7}, resp.AssignedShards)
	assert.Equal(t, "pod-9", srv.registered.Pod.PodID)
}

func TestRegisterHandlerInvokesInterceptor(t *testing.T) {
	srv := &fakeShardManagerServer{}
	called := false

	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		called = true
		assert.Equal(t, "/"+shardManagerServiceName+"/Register", info.FullMethod)
		return handler(ctx, req)
	}

	out, err := _ShardManager_Register_Handler(srv, context.Background(), func(v interface{}) error {
		*(v.(*RegisterRequest)) = RegisterRequest{Pod: Pod{PodID: "pod-1"}}
		return nil
	}, interceptor)
	require.NoError(t, err)

	assert.True(t, called)
	assert.Equal(t, uint64(1), out.(*RegisterResponse).AssignmentGeneration)
}
