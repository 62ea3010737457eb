package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

type fakeShardManagerClient struct {
	resp    *rpcproto.GetRoutingTableResponse
	err     error
	calls   int
}

func (f *fakeShardManagerClient) Register(ctx context.Context, in *rpcproto.RegisterRequest, opts ...grpc.CallOption) (*rpcproto.RegisterResponse, error) {
	return nil, nil
}

func (f *fakeShardManagerClient) Heartbeat(ctx context.Context, in *rpcproto.HeartbeatRequest, opts ...grpc.CallOption) (*rpcproto.HeartbeatResponse, error) {
	return nil, nil
}

func (f *fakeShardManagerClient) GetRoutingTable(ctx context.Context, in *rpcproto.GetRoutingTableRequest, opts ...grpc.CallOption) (*rpcproto.GetRoutingTableResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestResolveRefreshesOnCacheMiss(t *testing.T) {
	fake := &fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 1,
		Assignment: map[uint32]rpcproto.Pod{5: {PodID: "pod-a", Host: "h1", Port: 9000}},
	}}
	cache := NewCache(fake)

	pod, err := cache.Resolve(context.Background(), ids.ShardId(5))
	require.NoError(t, err)
	assert.Equal(t, "pod-a", pod.PodID)
	assert.Equal(t, 1, fake.calls)
}

func TestResolveUsesCachedValueWithoutRefetching(t *testing.T) {
	fake := &fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 1,
		Assignment: map[uint32]rpcproto.Pod{5: {PodID: "pod-a"}},
	}}
	cache := NewCache(fake)

	_, err := cache.Resolve(context.Background(), ids.ShardId(5))
	require.NoError(t, err)
	_, err = cache.Resolve(context.Background(), ids.ShardId(5))
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls)
}

func TestResolveAfterInvalidShardForcesRefresh(t *testing.T) {
	fake := &fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 1,
		Assignment: map[uint32]rpcproto.Pod{5: {PodID: "pod-a"}},
	}}
	cache := NewCache(fake)

	_, err := cache.Resolve(context.Background(), ids.ShardId(5))
	require.NoError(t, err)

	fake.resp = &rpcproto.GetRoutingTableResponse{
		Generation: 2,
		Assignment: map[uint32]rpcproto.Pod{5: {PodID: "pod-b"}},
	}

	pod, err := cache.ResolveAfterInvalidShard(context.Background(), ids.ShardId(5))
	require.NoError(t, err)
	assert.Equal(t, "pod-b", pod.PodID)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, uint64(2), cache.CurrentGeneration())
}

func TestRefreshIgnoresStaleLowerGeneration(t *testing.T) {
	fake := &fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 5,
		Assignment: map[uint32]rpcproto.Pod{1: {PodID: "current"}},
	}}
	cache := NewCache(fake)
	require.NoError(t, cache.Refresh(context.Background()))

	fake.resp = &rpcproto.GetRoutingTableResponse{
		Generation: 3,
		Assignment: map[uint32]rpcproto.Pod{1: {PodID: "stale"}},
	}
	require.NoError(t, cache.Refresh(context.Background()))

	pod, err := cache.Resolve(context.Background(), ids.ShardId(1))
	require.NoError(t, err)
	assert.Equal(t, "current", pod.PodID)
}

func TestResolveReturnsErrorWhenShardStillUnownedAfterRefresh(t *testing.T) {
	fake := &fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 1,
		Assignment: map[uint32]rpcproto.Pod{},
	}}
	cache := NewCache(fake)

	_, err := cache.Resolve(context.Background(), ids.ShardId(9))
	assert.Error(t, err)
}
