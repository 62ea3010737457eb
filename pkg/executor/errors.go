package executor

import (
	"fmt"

	"github.com/golem-project/golem-core/pkg/ids"
)

// WorkerCreationFailed is returned by CreateWorker when the worker's Create
// entry journals successfully but the immediate activation that follows it
// fails - a bad component reference, a missing artifact, or any other error
// Activate surfaces (§7). CreateWorker deletes the Create entry it just
// wrote before returning this, so a retried CreateWorker sees a clean slate
// rather than ErrWorkerAlreadyExists.
type WorkerCreationFailed struct {
	WorkerID ids.WorkerId
	Err      error
}

func (e *WorkerCreationFailed) Error() string {
	return fmt.Sprintf("executor: worker %s creation failed: %v", e.WorkerID, e.Err)
}

func (e *WorkerCreationFailed) Unwrap() error { return e.Err }

// ShardingNotReady is returned by any request reaching checkOwned before
// this pod has ever accepted a shard assignment from the Shard Manager
// (generation 0). It is distinct from ErrInvalidShardId: the shard this
// worker hashes to might well belong to this pod once the first assignment
// lands, whereas ErrInvalidShardId means another pod owns it now (§7).
type ShardingNotReady struct {
	WorkerID ids.WorkerId
}

func (e *ShardingNotReady) Error() string {
	return fmt.Sprintf("executor: worker %s: shard assignment not yet received", e.WorkerID)
}
