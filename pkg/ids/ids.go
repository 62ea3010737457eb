package ids

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// ComponentId identifies an uploaded WASM component definition.
type ComponentId struct {
	UUID uuid.UUID
}

// NewComponentId generates a fresh, random ComponentId.
func NewComponentId() ComponentId {
	return ComponentId{UUID: uuid.New()}
}

// ParseComponentId parses a string-form component id.
func ParseComponentId(s string) (ComponentId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ComponentId{}, fmt.Errorf("parse component id %q: %w", s, err)
	}
	return ComponentId{UUID: u}, nil
}

func (c ComponentId) String() string {
	return c.UUID.String()
}

// WorkerId identifies a single durable worker instance of a component.
type WorkerId struct {
	ComponentId ComponentId
	WorkerName  string
}

func NewWorkerId(componentID ComponentId, workerName string) WorkerId {
	return WorkerId{ComponentId: componentID, WorkerName: workerName}
}

func (w WorkerId) String() string {
	return fmt.Sprintf("%s/%s", w.ComponentId, w.WorkerName)
}

// ParseWorkerId parses the wire-level "componentID/workerName" form used by
// every Executor RPC that addresses a worker by string id.
func ParseWorkerId(s string) (WorkerId, error) {
	componentPart, workerName, ok := strings.Cut(s, "/")
	if !ok || workerName == "" {
		return WorkerId{}, fmt.Errorf("parse worker id %q: want \"component-id/worker-name\"", s)
	}
	componentID, err := ParseComponentId(componentPart)
	if err != nil {
		return WorkerId{}, fmt.Errorf("parse worker id %q: %w", s, err)
	}
	return WorkerId{ComponentId: componentID, WorkerName: workerName}, nil
}

// ShardId is the fixed-size bucket a worker is assigned to. The total shard
// count is fixed for the lifetime of a deployment (see Shard).
type ShardId uint32

func (s ShardId) String() string {
	return fmt.Sprintf("shard-%d", uint32(s))
}

// PodId identifies a running executor process.
type PodId struct {
	UUID uuid.UUID
}

func NewPodId() PodId {
	return PodId{UUID: uuid.New()}
}

func ParsePodId(s string) (PodId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PodId{}, fmt.Errorf("parse pod id %q: %w", s, err)
	}
	return PodId{UUID: u}, nil
}

func (p PodId) String() string {
	return p.UUID.String()
}

// PromiseId identifies a pending completion awaited by a worker invocation.
type PromiseId struct {
	WorkerId   WorkerId
	OplogIndex uint64
}

func (p PromiseId) String() string {
	return fmt.Sprintf("%s@%d", p.WorkerId, p.OplogIndex)
}

// Shard computes the shard a worker belongs to given the total shard count.
// The mapping must be stable across processes and restarts: it depends only
// on the worker id's bytes and the shard count, never on local state.
func Shard(workerID WorkerId, totalShardCount uint32) ShardId {
	if totalShardCount == 0 {
		panic("ids: totalShardCount must be positive")
	}
	h := xxhash.Sum64String(workerID.String())
	return ShardId(h % uint64(totalShardCount))
}
