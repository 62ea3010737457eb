package rpcfabric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/golem-project/golem-core/pkg/hostfn"
	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/golem-project/golem-core/pkg/routing"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

type alwaysOwns struct{}

func (alwaysOwns) Owns(ids.ShardId) bool { return true }

type neverOwns struct{}

func (neverOwns) Owns(ids.ShardId) bool { return false }

type fakeLocal struct {
	result [][]byte
	err    error
	calls  int
}

func (f *fakeLocal) InvokeAndAwait(ctx context.Context, target ids.WorkerId, function string, params [][]byte) ([][]byte, error) {
	f.calls++
	return f.result, f.err
}

type fakeRemote struct {
	result [][]byte
	err    error
	calls  int
}

func (f *fakeRemote) InvokeAndAwait(ctx context.Context, pod rpcproto.Pod, target ids.WorkerId, function string, params [][]byte) ([][]byte, error) {
	f.calls++
	return f.result, f.err
}

type fakeShardManagerClient struct {
	resp *rpcproto.GetRoutingTableResponse
}

func (f *fakeShardManagerClient) Register(ctx context.Context, in *rpcproto.RegisterRequest, opts ...grpc.CallOption) (*rpcproto.RegisterResponse, error) {
	return nil, nil
}
func (f *fakeShardManagerClient) Heartbeat(ctx context.Context, in *rpcproto.HeartbeatRequest, opts ...grpc.CallOption) (*rpcproto.HeartbeatResponse, error) {
	return nil, nil
}
func (f *fakeShardManagerClient) GetRoutingTable(ctx context.Context, in *rpcproto.GetRoutingTableRequest, opts ...grpc.CallOption) (*rpcproto.GetRoutingTableResponse, error) {
	return f.resp, nil
}

type fakeRecorder struct {
	mode Mode
}

type Mode = hostfn.Mode

func (f *fakeRecorder) Mode() Mode { return f.mode }
func (f *fakeRecorder) NextReplayed(_ string, _ []byte, dst any) error {
	return errors.New("not used in these tests")
}
func (f *fakeRecorder) Record(entry any) error { return nil }

func testWorkerID(name string) ids.WorkerId {
	return ids.WorkerId{ComponentId: ids.NewComponentId(), WorkerName: name}
}

func fastRetry() oplog.RetryPolicy {
	return oplog.RetryPolicy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestInvokeDispatchesInProcessWhenShardOwnedLocally(t *testing.T) {
	local := &fakeLocal{result: [][]byte{[]byte("ok")}}
	remote := &fakeRemote{}
	cache := routing.NewCache(&fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{}})
	f := New(alwaysOwns{}, 16, cache, local, remote, fastRetry())

	rec := &fakeRecorder{mode: hostfn.ModeLive}
	result, err := f.Invoke(context.Background(), rec, testWorkerID("caller"), testWorkerID("callee"), "do-thing", nil)

	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ok")}, result)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, remote.calls)
}

func TestInvokeDispatchesRemoteWhenShardNotOwned(t *testing.T) {
	local := &fakeLocal{}
	remote := &fakeRemote{result: [][]byte{[]byte("remote-ok")}}
	cache := routing.NewCache(&fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{
		Generation: 1,
		Assignment: map[uint32]rpcproto.Pod{0: {PodID: "pod-a"}, 1: {PodID: "pod-a"}},
	}})
	f := New(neverOwns{}, 2, cache, local, remote, fastRetry())

	rec := &fakeRecorder{mode: hostfn.ModeLive}
	target := testWorkerID("callee")
	result, err := f.Invoke(context.Background(), rec, testWorkerID("caller"), target, "do-thing", nil)

	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("remote-ok")}, result)
	assert.Equal(t, 0, local.calls)
	assert.Equal(t, 1, remote.calls)
}

func TestInvokeRetriesThenFailsAfterExhaustingAttempts(t *testing.T) {
	local := &fakeLocal{err: errors.New("boom")}
	remote := &fakeRemote{}
	cache := routing.NewCache(&fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{}})
	f := New(alwaysOwns{}, 16, cache, local, remote, fastRetry())

	rec := &fakeRecorder{mode: hostfn.ModeLive}
	_, err := f.Invoke(context.Background(), rec, testWorkerID("caller"), testWorkerID("callee"), "do-thing", nil)

	require.Error(t, err)
	assert.Equal(t, 3, local.calls)
}

func TestInvokeSucceedsOnRetryAfterTransientFailure(t *testing.T) {
	local := &fakeLocal{err: errors.New("transient")}
	remote := &fakeRemote{}
	cache := routing.NewCache(&fakeShardManagerClient{resp: &rpcproto.GetRoutingTableResponse{}})
	f := New(alwaysOwns{}, 16, cache, local, remote, fastRetry())

	go func() {
		time.Sleep(2 * time.Millisecond)
		local.err = nil
		local.result = [][]byte{[]byte("recovered")}
	}()

	rec := &fakeRecorder{mode: hostfn.ModeLive}
	result, err := f.Invoke(context.Background(), rec, testWorkerID("caller"), testWorkerID("callee"), "do-thing", nil)

	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("recovered")}, result)
}
