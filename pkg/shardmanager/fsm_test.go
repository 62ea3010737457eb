package shardmanager

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golem-project/golem-core/pkg/ids"
)

func TestFSMApplySetAssignmentUpdatesCurrent(t *testing.T) {
	fsm := newFSM(4)
	podA := ids.NewPodId()

	next, _, _ := rebalance(fsm.current(), []ids.PodId{podA})
	payload, err := encodeSetAssignment(next)
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: payload})
	assert.Nil(t, result)
	assert.Equal(t, next.Generation, fsm.current().Generation)
	assert.Equal(t, podA, fsm.current().ShardOwner[ids.ShardId(0)])
}

func TestFSMApplyUnknownOpReturnsError(t *testing.T) {
	fsm := newFSM(2)
	result := fsm.Apply(&raft.Log{Data: []byte(`{"op":"bogus","data":{}}`)})
	err, ok := result.(error)
	require.True(t, ok)
	assert.Error(t, err)
}

func TestFSMSnapshotAndRestoreRoundTrip(t *testing.T) {
	fsm := newFSM(4)
	podA := ids.NewPodId()
	next, _, _ := rebalance(fsm.current(), []ids.PodId{podA})
	payload, err := encodeSetAssignment(next)
	require.NoError(t, err)
	require.Nil(t, fsm.Apply(&raft.Log{Data: payload}))

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &fakeSnapshotSink{}
	require.NoError(t, snap.Persist(sink))

	restored := newFSM(4)
	require.NoError(t, restored.Restore(io.NopCloser(bytes.NewReader(sink.buf.Bytes()))))

	assert.Equal(t, fsm.current().Generation, restored.current().Generation)
	assert.Equal(t, fsm.current().ShardOwner, restored.current().ShardOwner)
}

type fakeSnapshotSink struct {
	buf      bytes.Buffer
	canceled bool
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Close() error                { return nil }
func (s *fakeSnapshotSink) ID() string                  { return "test-snapshot" }
func (s *fakeSnapshotSink) Cancel() error {
	s.canceled = true
	return nil
}

var errSnapshotWrite = errors.New("snapshot write failed")

type failingSnapshotSink struct{ fakeSnapshotSink }

func (s *failingSnapshotSink) Write(p []byte) (int, error) { return 0, errSnapshotWrite }

func TestFSMSnapshotPersistCancelsSinkOnEncodeFailure(t *testing.T) {
	fsm := newFSM(2)
	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &failingSnapshotSink{}
	err = snap.Persist(sink)
	assert.Error(t, err)
	assert.True(t, sink.canceled)
}
