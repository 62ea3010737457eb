package worker

import (
	"context"
	"testing"
	"time"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowAllOwnership struct{}

func (allowAllOwnership) Owns(ids.ShardId) bool { return true }

type denyAllOwnership struct{}

func (denyAllOwnership) Owns(ids.ShardId) bool { return false }

func bigInstance(_ context.Context, _ string) (Instance, error) {
	return &fakeInstance{linearMemory: 10 * 1024 * 1024}, nil
}

func TestGetOrActivateReturnsExistingResidentWorker(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := NewRegistry(store, allowAllOwnership{}, 16, 0, fakeNewInstance, &fakeInvoker{})
	id := newTestWorkerID()

	first, err := reg.GetOrActivate(context.Background(), id, "comp-1", 1)
	require.NoError(t, err)

	second, err := reg.GetOrActivate(context.Background(), id, "comp-1", 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Count())
}

func TestGetOrActivateRejectsUnownedShard(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := NewRegistry(store, denyAllOwnership{}, 16, 0, fakeNewInstance, &fakeInvoker{})

	_, err = reg.GetOrActivate(context.Background(), newTestWorkerID(), "comp-1", 1)
	require.Error(t, err)

	var invalidShard *ErrInvalidShardId
	assert.ErrorAs(t, err, &invalidShard)
}

func TestMemoryGovernorEvictsIdleBeforeAdmittingNewWorker(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cap := uint64(12 * 1024 * 1024)
	reg := NewRegistry(store, allowAllOwnership{}, 16, cap, bigInstance, &fakeInvoker{})

	componentID := ids.NewComponentId()
	first := ids.NewWorkerId(componentID, "worker-a")
	second := ids.NewWorkerId(componentID, "worker-b")

	w1, err := reg.GetOrActivate(context.Background(), first, "comp-1", 1)
	require.NoError(t, err)
	// Interrupted is idle (not Live) but still holds its 12MiB estimate, so
	// admitting the second worker must evict it.
	require.NoError(t, w1.Interrupt(context.Background(), false))

	time.Sleep(time.Millisecond)

	_, err = reg.GetOrActivate(context.Background(), second, "comp-1", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Count())
}

func TestLiveWorkersAreNeverEvicted(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cap := uint64(1) // impossibly tight cap; forces eviction attempts
	reg := NewRegistry(store, allowAllOwnership{}, 16, cap, bigInstance, &fakeInvoker{})

	componentID := ids.NewComponentId()
	id := ids.NewWorkerId(componentID, "worker-only-live")

	w, err := reg.GetOrActivate(context.Background(), id, "comp-1", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, w.Status())

	reg.EnforceMemoryLimit(context.Background())

	assert.Equal(t, StatusLive, w.Status())
	assert.Equal(t, 1, reg.Count())
}

func TestRevokeShardDropsMatchingWorkers(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := NewRegistry(store, allowAllOwnership{}, 1, 0, fakeNewInstance, &fakeInvoker{})
	id := newTestWorkerID()

	_, err = reg.GetOrActivate(context.Background(), id, "comp-1", 1)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Count())

	shardID := ids.Shard(id, 1)
	reg.RevokeShard(context.Background(), shardID)

	assert.Equal(t, 0, reg.Count())
}
