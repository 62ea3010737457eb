package shardmanager

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

type fakePodControlClient struct {
	mu       sync.Mutex
	assigned []rpcproto.AssignShardIdsRequest
	revoked  []rpcproto.RevokeShardIdsRequest
}

func (f *fakePodControlClient) AssignShardIds(ctx context.Context, in *rpcproto.AssignShardIdsRequest, _ ...grpc.CallOption) (*rpcproto.AssignShardIdsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, *in)
	return &rpcproto.AssignShardIdsResponse{}, nil
}

func (f *fakePodControlClient) RevokeShardIds(ctx context.Context, in *rpcproto.RevokeShardIdsRequest, _ ...grpc.CallOption) (*rpcproto.RevokeShardIdsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, *in)
	return &rpcproto.RevokeShardIdsResponse{}, nil
}

type fakeDialer struct {
	mu      sync.Mutex
	clients map[string]*fakePodControlClient
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{clients: make(map[string]*fakePodControlClient)}
}

func (d *fakeDialer) Dial(_ context.Context, pod rpcproto.Pod) (rpcproto.PodControlClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[pod.PodID]
	if !ok {
		c = &fakePodControlClient{}
		d.clients[pod.PodID] = c
	}
	return c, nil
}

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func bootstrapManager(t *testing.T, totalShards uint32, dialer PodControlDialer) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		NodeID:           "node-1",
		BindAddr:         freeTCPAddr(t),
		DataDir:          t.TempDir(),
		TotalShardCount:  totalShards,
		HeartbeatTimeout: 200 * time.Millisecond,
	}, dialer)
	require.NoError(t, err)
	require.NoError(t, mgr.Bootstrap())

	deadline := time.Now().Add(5 * time.Second)
	for !mgr.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatal("manager never became raft leader")
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() { _ = mgr.Shutdown() })
	return mgr
}

func TestManagerRegisterAssignsShardsAndPushesNotifications(t *testing.T) {
	dialer := newFakeDialer()
	mgr := bootstrapManager(t, 4, dialer)

	pod := rpcproto.Pod{PodID: "11111111-1111-1111-1111-111111111111", Host: "10.0.0.1", Port: 9090}
	assignment, shards, err := mgr.Register(context.Background(), pod)
	require.NoError(t, err)
	assert.Len(t, shards, 4)
	assert.Equal(t, uint64(1), assignment.Generation)

	client := dialer.clients[pod.PodID]
	require.NotNil(t, client)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.NotEmpty(t, client.assigned)
}

func TestManagerRegisterRejectsInvalidPodId(t *testing.T) {
	mgr := bootstrapManager(t, 2, newFakeDialer())
	_, _, err := mgr.Register(context.Background(), rpcproto.Pod{PodID: "not-a-uuid"})
	assert.Error(t, err)
}

func TestManagerHeartbeatFromUnregisteredPodFails(t *testing.T) {
	mgr := bootstrapManager(t, 2, newFakeDialer())
	err := mgr.Heartbeat(rpcproto.Pod{PodID: "22222222-2222-2222-2222-222222222222"})
	assert.Error(t, err)
}

func TestManagerDetectFailuresAndRebalanceEvictsStalePod(t *testing.T) {
	dialer := newFakeDialer()
	mgr := bootstrapManager(t, 4, dialer)

	pod := rpcproto.Pod{PodID: "33333333-3333-3333-3333-333333333333"}
	_, _, err := mgr.Register(context.Background(), pod)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	assignment, err := mgr.DetectFailuresAndRebalance(context.Background())
	require.NoError(t, err)
	evictedID, err := ids.ParsePodId(pod.PodID)
	require.NoError(t, err)
	for _, owner := range assignment.ShardOwner {
		assert.NotEqual(t, evictedID, owner)
	}
}

func TestManagerRoutingTableReflectsLatestAssignment(t *testing.T) {
	dialer := newFakeDialer()
	mgr := bootstrapManager(t, 4, dialer)

	pod := rpcproto.Pod{PodID: "44444444-4444-4444-4444-444444444444", Host: "10.0.0.5", Port: 7000}
	_, _, err := mgr.Register(context.Background(), pod)
	require.NoError(t, err)

	generation, table := mgr.RoutingTable()
	assert.Equal(t, uint64(1), generation)
	assert.Len(t, table, 4)
	for _, p := range table {
		assert.Equal(t, pod, p)
	}
}

func TestNewManagerRejectsZeroShardCount(t *testing.T) {
	_, err := NewManager(Config{NodeID: "n", BindAddr: freeTCPAddr(t), DataDir: t.TempDir()}, nil)
	assert.Error(t, err)
}
