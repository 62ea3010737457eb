package worker

import (
	"fmt"

	"github.com/golem-project/golem-core/pkg/ids"
)

// FailedToResumeWorker is returned by Activate when constructing the WASM
// instance, reading the oplog prefix, or replaying it fails - the worker
// could not be brought back to Live (§7).
type FailedToResumeWorker struct {
	WorkerID ids.WorkerId
	Err      error
}

func (e *FailedToResumeWorker) Error() string {
	return fmt.Sprintf("worker %s: failed to resume: %v", e.WorkerID, e.Err)
}

func (e *FailedToResumeWorker) Unwrap() error { return e.Err }

// PreviousInvocationFailed is returned by Invoke when the worker is
// already Failed: a prior invocation (or replay of one) left it
// terminally unable to serve further calls (§7).
type PreviousInvocationFailed struct {
	WorkerID ids.WorkerId
}

func (e *PreviousInvocationFailed) Error() string {
	return fmt.Sprintf("worker %s: previous invocation failed", e.WorkerID)
}

// PreviousInvocationExited is returned by Invoke when the worker has
// already exited.
type PreviousInvocationExited struct {
	WorkerID ids.WorkerId
}

func (e *PreviousInvocationExited) Error() string {
	return fmt.Sprintf("worker %s: previous invocation exited", e.WorkerID)
}

// ValueMismatch is returned by replayInvocation when re-executing a
// recorded exported-function call against the rebuilt instance diverges
// from what the log says happened the first time: the call raised an
// error where the log recorded success (or vice versa), or it succeeded
// both times but produced a different result hash. Either way the
// component is no longer deterministic against its own log, which is
// reported rather than silently accepted (§7).
type ValueMismatch struct {
	WorkerID     ids.WorkerId
	FunctionName string
	Reason       string
}

func (e *ValueMismatch) Error() string {
	return fmt.Sprintf("worker %s: invocation %s: %s", e.WorkerID, e.FunctionName, e.Reason)
}
