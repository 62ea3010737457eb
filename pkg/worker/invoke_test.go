package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	calls  int
	result [][]byte
	err    error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ Instance, _ string, _ [][]byte) ([][]byte, error) {
	f.calls++
	return f.result, f.err
}

func newLiveWorker(t *testing.T) (*ActiveWorker, oplog.Service) {
	t.Helper()
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))
	return w, store
}

func TestInvokeAppendsBeginAndCompleteEntries(t *testing.T) {
	w, store := newLiveWorker(t)
	invoker := &fakeInvoker{result: [][]byte{[]byte("42")}}

	result, err := w.Invoke(context.Background(), invoker, "key-1", "add", [][]byte{[]byte("40"), []byte("2")})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("42")}, result)

	entries, err := store.Read(context.Background(), w.id, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, oplog.KindExportedFunctionInvoked, entries[0].Kind)
	assert.Equal(t, oplog.KindExportedFunctionCompleted, entries[1].Kind)
}

func TestInvokeWithSameIdempotencyKeyDoesNotReinvoke(t *testing.T) {
	w, _ := newLiveWorker(t)
	invoker := &fakeInvoker{result: [][]byte{[]byte("ok")}}

	first, err := w.Invoke(context.Background(), invoker, "key-1", "f", nil)
	require.NoError(t, err)
	second, err := w.Invoke(context.Background(), invoker, "key-1", "f", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, invoker.calls)
}

func TestInvokeWithoutIdempotencyKeyAlwaysReinvokes(t *testing.T) {
	w, _ := newLiveWorker(t)
	invoker := &fakeInvoker{result: [][]byte{[]byte("ok")}}

	_, err := w.Invoke(context.Background(), invoker, "", "f", nil)
	require.NoError(t, err)
	_, err = w.Invoke(context.Background(), invoker, "", "f", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, invoker.calls)
}

func TestInvokeFailureMarksWorkerFailedAndMemoizesError(t *testing.T) {
	w, _ := newLiveWorker(t)
	invoker := &fakeInvoker{err: errors.New("guest trap")}

	_, err := w.Invoke(context.Background(), invoker, "key-1", "f", nil)
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, w.Status())
	assert.Equal(t, err, w.invocationCache["key-1"].err)
}

func TestInvokeRejectsNonLiveWorker(t *testing.T) {
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(newTestWorkerID(), "comp-1", store)
	_, err = w.Invoke(context.Background(), &fakeInvoker{}, "", "f", nil)
	assert.Error(t, err)
}

func TestReplayDetectsValueMismatch(t *testing.T) {
	id := newTestWorkerID()
	store, err := oplog.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	w := NewActiveWorker(id, "comp-1", store)
	require.NoError(t, w.Activate(context.Background(), fakeNewInstance, &fakeInvoker{}))

	_, err = w.Invoke(context.Background(), &fakeInvoker{result: [][]byte{[]byte("42")}}, "key-1", "add", nil)
	require.NoError(t, err)

	reactivated := NewActiveWorker(id, "comp-1", store)
	err = reactivated.Activate(context.Background(), fakeNewInstance, &fakeInvoker{result: [][]byte{[]byte("41")}})
	require.Error(t, err)

	var resumeErr *FailedToResumeWorker
	require.ErrorAs(t, err, &resumeErr)
	var mismatch *ValueMismatch
	require.ErrorAs(t, resumeErr.Err, &mismatch)
	assert.Equal(t, "add", mismatch.FunctionName)
}
