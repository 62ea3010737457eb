package promise

import (
	"context"
	"testing"
	"time"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPromiseID() ids.PromiseId {
	return ids.PromiseId{
		WorkerId:   ids.NewWorkerId(ids.NewComponentId(), "worker-1"),
		OplogIndex: 3,
	}
}

func TestCreateThenAwaitBlocksUntilComplete(t *testing.T) {
	svc := NewService()
	id := testPromiseID()
	svc.Create(id)

	done := make(chan Result, 1)
	go func() {
		result, err := svc.Await(context.Background(), id)
		require.NoError(t, err)
		done <- result
	}()

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, svc.Complete(id, Result{Value: []byte("ok")}))

	select {
	case result := <-done:
		assert.Equal(t, []byte("ok"), result.Value)
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after Complete")
	}
}

func TestAwaitAfterCompleteReturnsImmediately(t *testing.T) {
	svc := NewService()
	id := testPromiseID()
	svc.Create(id)
	require.NoError(t, svc.Complete(id, Result{Value: []byte("ready")}))

	result, err := svc.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ready"), result.Value)
}

func TestDoubleCompletionIsNoop(t *testing.T) {
	svc := NewService()
	id := testPromiseID()
	svc.Create(id)

	require.NoError(t, svc.Complete(id, Result{Value: []byte("first")}))
	require.NoError(t, svc.Complete(id, Result{Value: []byte("second")}))

	result, err := svc.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), result.Value)
}

func TestAwaitNonexistentPromiseErrors(t *testing.T) {
	svc := NewService()
	_, err := svc.Await(context.Background(), testPromiseID())
	var notFound *PromiseNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestCompleteNonexistentPromiseErrors(t *testing.T) {
	svc := NewService()
	err := svc.Complete(testPromiseID(), Result{})
	var notFound *PromiseNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAwaitForgottenPromiseReturnsDropped(t *testing.T) {
	svc := NewService()
	id := testPromiseID()
	svc.Create(id)
	require.NoError(t, svc.Complete(id, Result{Value: []byte("ok")}))
	svc.Forget(id)

	_, err := svc.Await(context.Background(), id)
	var dropped *PromiseDropped
	require.ErrorAs(t, err, &dropped)
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	svc := NewService()
	id := testPromiseID()
	svc.Create(id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Await(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingCountTracksOutstandingPromises(t *testing.T) {
	svc := NewService()
	a := testPromiseID()
	b := ids.PromiseId{WorkerId: a.WorkerId, OplogIndex: 7}

	svc.Create(a)
	svc.Create(b)
	assert.Equal(t, 2, svc.PendingCount())

	require.NoError(t, svc.Complete(a, Result{}))
	assert.Equal(t, 1, svc.PendingCount())
}
