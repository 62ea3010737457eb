package rpcproto

import "time"

// Pod identifies a running executor process for Shard Manager bookkeeping.
type Pod struct {
	PodID string
	Host  string
	Port  int32
}

// --- Shard Manager messages ---

type RegisterRequest struct {
	Pod Pod
}

type RegisterResponse struct {
	AssignmentGeneration uint64
	AssignedShards       []uint32
}

type GetRoutingTableRequest struct{}

type GetRoutingTableResponse struct {
	Generation uint64
	Assignment map[uint32]Pod
}

type HeartbeatRequest struct {
	Pod Pod
}

type HeartbeatResponse struct{}

type AssignShardIdsRequest struct {
	Generation uint64
	Shards     []uint32
}

type AssignShardIdsResponse struct{}

type RevokeShardIdsRequest struct {
	Generation uint64
	Shards     []uint32
}

type RevokeShardIdsResponse struct{}

// --- Executor messages ---

type CreateWorkerRequest struct {
	WorkerID         string
	ComponentID      string
	ComponentVersion uint64
	Args             []string
	Env              map[string]string
}

type CreateWorkerResponse struct{}

type InvokeAndAwaitRequest struct {
	WorkerID       string
	IdempotencyKey string
	FunctionName   string
	Params         [][]byte
}

type InvokeAndAwaitResponse struct {
	Result    [][]byte
	ErrorKind string
	ErrorMsg  string
}

type InvokeRequest struct {
	WorkerID       string
	IdempotencyKey string
	FunctionName   string
	Params         [][]byte
}

type InvokeResponse struct {
	Accepted bool
}

type ConnectWorkerRequest struct {
	WorkerID string
}

// WorkerEvent is one item of the ConnectWorker log/output tail stream.
type WorkerEvent struct {
	Timestamp time.Time
	Stream    string // "stdout" | "stderr" | "lifecycle"
	Data      []byte
}

type GetMetadataRequest struct {
	WorkerID string
}

type GetMetadataResponse struct {
	Status           string
	ComponentVersion uint64
	RetryPolicy      RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts int32
	MinDelayMs  int64
	MaxDelayMs  int64
	Multiplier  float64
}

type InterruptWorkerRequest struct {
	WorkerID          string
	RecoverImmediately bool
}

type InterruptWorkerResponse struct{}

type ResumeWorkerRequest struct {
	WorkerID string
}

type ResumeWorkerResponse struct{}

type DeleteWorkerRequest struct {
	WorkerID string
}

type DeleteWorkerResponse struct{}

type UpdateWorkerRequest struct {
	WorkerID       string
	TargetVersion  uint64
	Mode           string // "automatic" | "snapshot"
}

type UpdateWorkerResponse struct{}

// RevertTarget is a union: exactly one of the two fields is set,
// mirroring the spec's LastInvocations(n) | ToOplogIndex(k) choice.
type RevertTarget struct {
	LastInvocations int32
	ToOplogIndex    uint64
	ByIndex         bool
}

type RevertWorkerRequest struct {
	WorkerID string
	Target   RevertTarget
}

type RevertWorkerResponse struct{}

type CompletePromiseRequest struct {
	PromiseID   string
	WorkerID    string
	OplogIndex  uint64
	PayloadBytes []byte
}

type CompletePromiseResponse struct{}

type GetOplogRequest struct {
	WorkerID  string
	FromIndex uint64
}

// OplogEntryWire is the wire-level representation of one oplog entry
// returned by GetOplog. Kept separate from oplog.OplogEntry so that the
// RPC surface does not force the oplog package to import rpcproto.
type OplogEntryWire struct {
	Index     uint64
	Kind      string
	Timestamp time.Time
	PayloadJSON []byte
}
