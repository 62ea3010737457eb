package shardmanager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Command is a Raft log entry: an operation name plus its JSON-encoded
// arguments, applied to the FSM once committed by a quorum.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opSetAssignment = "set_assignment"
)

// FSM is the Raft finite-state machine backing shard assignment
// consensus: every accepted rebalance decision is replicated through Raft
// before being announced to pods, so a Shard Manager leader election
// always resumes from the last committed assignment (§4.5 persistence
// requirement).
type FSM struct {
	mu         sync.RWMutex
	assignment Assignment
}

func newFSM(totalShards uint32) *FSM {
	return &FSM{assignment: newAssignment(totalShards)}
}

func (f *FSM) current() Assignment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.assignment.clone()
}

// Apply applies a committed Raft log entry to the FSM.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("shardmanager fsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opSetAssignment:
		var a Assignment
		if err := json.Unmarshal(cmd.Data, &a); err != nil {
			return fmt.Errorf("shardmanager fsm: unmarshal assignment: %w", err)
		}
		f.assignment = a
		return nil
	default:
		return fmt.Errorf("shardmanager fsm: unknown command %q", cmd.Op)
	}
}

// Snapshot captures the current assignment for Raft log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &snapshot{assignment: f.assignment.clone()}, nil
}

// Restore replaces the FSM's state from a previously persisted snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var a Assignment
	if err := json.NewDecoder(rc).Decode(&a); err != nil {
		return fmt.Errorf("shardmanager fsm: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignment = a
	return nil
}

type snapshot struct {
	assignment Assignment
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.assignment); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *snapshot) Release() {}

// encodeSetAssignment builds the Raft log payload for a new assignment.
func encodeSetAssignment(a Assignment) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("shardmanager fsm: marshal assignment: %w", err)
	}
	cmd := Command{Op: opSetAssignment, Data: data}
	return json.Marshal(cmd)
}
