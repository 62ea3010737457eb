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

type fakeInstance struct {
	linearMemory uint64
	closed       bool
}

func (f *fakeInstance) LinearMemoryBytes() uint64 { return f.linearMemory }
func (f *fakeInstance) Close(_ context.Context) error {
	f.closed = true
	return nil
}

func fakeNewInstance(_ context.Context, _ string) (Instance, error) {
	return &fakeInstance{linearMemory: 1024}, nil
}

func newTestWorkerID() ids.WorkerId {
	return ids.NewWorkerId(ids.NewComponentId(), "worker-1")
}

func TestActivateEmptyLogGoesStraightToLive(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id := newTestWorkerID()
	w := NewActiveWorker(id, "comp-1", store)

	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))
	assert.Equal(t, StatusLive, w.Status())
	assert.Greater(t, w.MemoryEstimateBytes(), uint64(0))
}

func TestActivateReplaysExistingEntries(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id := newTestWorkerID()
	ctx := context.Background()

	_, err = store.Append(ctx, id,
		oplog.OplogEntry{Kind: oplog.KindCreate, Timestamp: time.Now(), Create: &oplog.CreatePayload{ComponentID: "comp-1"}},
		oplog.OplogEntry{Kind: oplog.KindSuspend, Timestamp: time.Now(), Suspend: &oplog.SuspendPayload{Reason: "idle"}},
	)
	require.NoError(t, err)

	w := NewActiveWorker(id, "comp-1", store)
	require.NoError(t, w.Activate(ctx, fakeNewInstance, &fakeInvoker{}))
	assert.Equal(t, StatusLive, w.Status())
}

func TestActivateTwiceFails(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	err = w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{})
	assert.Error(t, err)
}

func TestSuspendFreesInstanceAndClearsMemoryEstimate(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	instance := w.instance.(*fakeInstance)
	require.NoError(t, w.Suspend(context.Background()))

	assert.True(t, instance.closed)
	assert.Equal(t, StatusSuspended, w.Status())
	assert.Equal(t, uint64(0), w.MemoryEstimateBytes())
}

func TestFailAppendsErrorEntry(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id := newTestWorkerID()
	w := NewActiveWorker(id, "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	require.NoError(t, w.Fail(context.Background(), assertError("boom")))
	assert.Equal(t, StatusFailed, w.Status())

	length, err := store.Length(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), length)
}

func TestInterruptThenResumeReturnsToLive(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	require.NoError(t, w.Interrupt(context.Background(), false))
	assert.Equal(t, StatusInterrupted, w.Status())

	require.NoError(t, w.Resume())
	assert.Equal(t, StatusLive, w.Status())
}

func TestInterruptWithRecoverImmediatelyStaysLive(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	require.NoError(t, w.Interrupt(context.Background(), true))
	assert.Equal(t, StatusLive, w.Status())
}

func TestResumeWithoutInterruptFails(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	assert.Error(t, w.Resume())
}

func TestRegistryPeekDoesNotActivate(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := NewRegistry(store, allowAllOwnership{}, 16, 0, fakeNewInstance, &fakeInvoker{})
	id := newTestWorkerID()

	_, ok := reg.Peek(id)
	assert.False(t, ok)

	_, err = reg.GetOrActivate(context.Background(), id, "comp-1", 1)
	require.NoError(t, err)

	w, ok := reg.Peek(id)
	require.True(t, ok)
	assert.Equal(t, StatusLive, w.Status())
}

type assertError string

func (e assertError) Error() string { return string(e) }
