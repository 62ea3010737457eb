package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/golem-project/golem-core/pkg/hostfn"
	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/oplog"
)

// DefaultInstanceOverheadBytes is the fixed per-instance memory overhead
// added to a component's reported linear-memory high-water mark when
// estimating an ActiveWorker's footprint for the memory governor.
const DefaultInstanceOverheadBytes = 2 * 1024 * 1024

// RetryPolicy is re-exported from oplog for callers that only import
// worker.
type RetryPolicy = oplog.RetryPolicy

// ActiveWorker is the in-memory materialization of a worker: its WASM
// instance, its replay cursor, and the bookkeeping the registry and
// memory governor need.
type ActiveWorker struct {
	mu sync.Mutex

	id               ids.WorkerId
	status           Status
	componentID      string
	componentVersion uint64
	retryPolicy      RetryPolicy

	oplogSvc oplog.Service
	cursor   *replayCursor

	invocationCache map[string]invocationOutcome

	atomicRegionSeq uint64
	openRegions     map[string]bool

	lastActivity    time.Time
	memoryEstimate  uint64
	linearMemoryHWM uint64

	instance Instance
}

// Instance is the subset of a WASM module instance the worker package
// needs. Production wiring supplies an instance backed by wazero; tests
// can supply a fake.
type Instance interface {
	// LinearMemoryBytes reports the current high-water mark of the
	// instance's linear memory, in bytes.
	LinearMemoryBytes() uint64
	// Close tears down the instance, freeing its store.
	Close(ctx context.Context) error
}

// NewActiveWorker constructs a worker in the Loading state. Call Activate
// to drive it through Replaying to Live.
func NewActiveWorker(id ids.WorkerId, componentID string, svc oplog.Service) *ActiveWorker {
	return &ActiveWorker{
		id:           id,
		status:       StatusLoading,
		componentID:  componentID,
		oplogSvc:     svc,
		lastActivity: time.Now(),
	}
}

// Status returns the worker's current lifecycle state.
func (w *ActiveWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// ID returns the worker's identity.
func (w *ActiveWorker) ID() ids.WorkerId { return w.id }

// LastActivity returns the timestamp of the worker's most recent
// interaction, used by the memory governor's LRU eviction order.
func (w *ActiveWorker) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

func (w *ActiveWorker) touch() {
	w.lastActivity = time.Now()
}

// MemoryEstimateBytes returns the worker's estimated footprint: the
// instance's linear-memory high-water mark plus a fixed per-instance
// overhead (I8).
func (w *ActiveWorker) MemoryEstimateBytes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.memoryEstimate
}

func (w *ActiveWorker) refreshMemoryEstimate() {
	if w.instance == nil {
		w.memoryEstimate = DefaultInstanceOverheadBytes
		return
	}
	w.linearMemoryHWM = w.instance.LinearMemoryBytes()
	w.memoryEstimate = w.linearMemoryHWM + DefaultInstanceOverheadBytes
}

// Activate constructs the WASM instance (via newInstance) and replays the
// worker's oplog from index 1, re-running every recorded exported-function
// invocation against the fresh instance via invoker so guest-visible state
// (counters, in-memory maps, anything the guest keeps only in its own
// linear memory) is rebuilt rather than lost (I2). Host imports made
// during those re-runs are served from the log through Recorder rather
// than performed again. On success the worker transitions to Live, or to
// Failed when the last entry left after revert and atomic-region filtering
// is an Error entry (as Fail leaves it); an empty log transitions directly
// from Replaying to Live without consuming any entries.
func (w *ActiveWorker) Activate(ctx context.Context, newInstance func(ctx context.Context, componentID string) (Instance, error), invoker Invoker) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusLoading {
		return fmt.Errorf("worker %s: Activate called in state %s, want %s", w.id, w.status, StatusLoading)
	}

	length, err := w.oplogSvc.Length(ctx, w.id)
	if err != nil {
		return fmt.Errorf("worker %s: read oplog length: %w", w.id, err)
	}

	w.status = StatusReplaying
	timer := metrics.NewTimer()

	instance, err := newInstance(ctx, w.componentID)
	if err != nil {
		w.status = StatusFailed
		return &FailedToResumeWorker{WorkerID: w.id, Err: fmt.Errorf("construct instance: %w", err)}
	}
	w.instance = instance

	entries, err := w.oplogSvc.ReadPrefixEndingAt(ctx, w.id, oplog.OplogIndex(length))
	if err != nil {
		w.status = StatusFailed
		return &FailedToResumeWorker{WorkerID: w.id, Err: fmt.Errorf("read oplog prefix: %w", err)}
	}

	w.cursor = newReplayCursor(entries)
	if err := w.replay(ctx, invoker); err != nil {
		w.status = StatusFailed
		return &FailedToResumeWorker{WorkerID: w.id, Err: err}
	}

	w.status = StatusLive
	if n := len(w.cursor.entries); n > 0 && w.cursor.entries[n-1].Kind == oplog.KindError {
		w.status = StatusFailed
	}
	w.refreshMemoryEstimate()
	w.touch()
	timer.ObserveDuration(metrics.WorkerActivationDuration)

	log.WithWorkerID(w.id.String()).Info().
		Uint64("oplog_length", length).
		Msg("worker activated")

	return nil
}

// replay walks the cursor, dispatching on entry kind: a ChangeRetryPolicy
// entry updates the retry policy bookkeeping; an ExportedFunctionInvoked
// entry re-runs the guest export through invoker so its side effects on
// the fresh instance's linear memory actually happen again, rather than
// being assumed from a stored result; an UpdateWorker entry in automatic
// mode switches the component version future live calls and further
// replay bookkeeping observe. Any other entry (host-import records the
// re-invoked export consumes directly via Recorder, lifecycle markers)
// is skipped — it is either consumed as a side effect of replaying the
// invocation that produced it, or informational only.
func (w *ActiveWorker) replay(ctx context.Context, invoker Invoker) error {
	for !w.cursor.exhausted() {
		entry, err := w.cursor.peek()
		if err != nil {
			return err
		}

		switch entry.Kind {
		case oplog.KindChangeRetryPolicy:
			if entry.ChangeRetryPolicy != nil {
				w.retryPolicy = entry.ChangeRetryPolicy.NewPolicy
			}
			if _, err := w.cursor.consume(); err != nil {
				return err
			}

		case oplog.KindUpdateWorker:
			if entry.UpdateWorker != nil && entry.UpdateWorker.Mode != updateModeSnapshot {
				w.componentVersion = entry.UpdateWorker.TargetComponentVersion
			}
			if _, err := w.cursor.consume(); err != nil {
				return err
			}

		case oplog.KindExportedFunctionInvoked:
			if err := w.replayInvocation(ctx, invoker); err != nil {
				return err
			}

		default:
			if _, err := w.cursor.consume(); err != nil {
				return err
			}
		}
	}
	return nil
}

// replayInvocation re-executes one recorded exported-function call: it
// consumes the ExportedFunctionInvoked begin marker, calls invoker with
// the same function name and params that were used live, then checks the
// next entry (ExportedFunctionCompleted on success, Error on failure)
// against what actually happened this time. A mismatched result hash
// means the component is no longer deterministic against its own log,
// which is reported rather than silently accepted. On a clean match the
// invocation's outcome is memoized under its invocation id exactly as a
// live call would, so a duplicate InvokeAndAwait submitted after
// reactivation hits the cache instead of running the guest export again.
func (w *ActiveWorker) replayInvocation(ctx context.Context, invoker Invoker) error {
	begin, err := w.cursor.consume()
	if err != nil {
		return err
	}
	if begin.ExportedFunctionInvoked == nil {
		return fmt.Errorf("worker %s: malformed exported-function-invoked entry at index %d", w.id, begin.Index)
	}
	functionName := begin.ExportedFunctionInvoked.FunctionName
	invocationID := begin.ExportedFunctionInvoked.InvocationID
	params := begin.ExportedFunctionInvoked.Params

	result, invokeErr := invoker.Invoke(ctx, w.instance, functionName, params)

	next, err := w.cursor.consume()
	if err != nil {
		return err
	}

	if invokeErr != nil {
		if next.Kind != oplog.KindError {
			return &ValueMismatch{
				WorkerID:     w.id,
				FunctionName: functionName,
				Reason:       fmt.Sprintf("failed on replay but log expected %s, not an error", next.Kind),
			}
		}
		w.memoizeOutcome(invocationID, nil, invokeErr)
		return nil
	}

	if next.Kind != oplog.KindExportedFunctionCompleted || next.ExportedFunctionCompleted == nil {
		return &ValueMismatch{
			WorkerID:     w.id,
			FunctionName: functionName,
			Reason:       fmt.Sprintf("succeeded on replay but log expected %s", next.Kind),
		}
	}
	sum := sha256.Sum256(bytes.Join(result, nil))
	if !bytes.Equal(sum[:], next.ExportedFunctionCompleted.ResultHash) {
		return &ValueMismatch{
			WorkerID:     w.id,
			FunctionName: functionName,
			Reason:       "produced a different result on replay than the one recorded",
		}
	}

	w.memoizeOutcome(invocationID, result, nil)
	return nil
}

// Recorder returns the hostfn.Recorder this worker's host-function
// wrappers should use. While Replaying it serves entries from the cursor
// built during Activate; once Live it appends new entries to the oplog.
func (w *ActiveWorker) Recorder() hostfn.Recorder {
	return &workerRecorder{w: w}
}

// Suspend reclaims the worker's WASM instance while the oplog is
// preserved. A suspended worker reactivates from Loading.
func (w *ActiveWorker) Suspend(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.terminal() || w.status == StatusDeleted {
		return fmt.Errorf("worker %s: cannot suspend from state %s", w.id, w.status)
	}

	if w.instance != nil {
		if err := w.instance.Close(ctx); err != nil {
			return fmt.Errorf("worker %s: close instance: %w", w.id, err)
		}
		w.instance = nil
	}
	w.status = StatusSuspended
	w.memoryEstimate = 0
	return nil
}

// RetryPolicy returns the worker's current retry policy, as last set by a
// ChangeRetryPolicy oplog entry.
func (w *ActiveWorker) RetryPolicy() RetryPolicy {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retryPolicy
}

// Interrupt transitions a Live worker to Interrupted and journals an
// Interrupted entry. Replay skips that entry, so a worker reactivated after
// a crash or eviction comes back Live, not Interrupted.
func (w *ActiveWorker) Interrupt(ctx context.Context, recoverImmediately bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusLive {
		return fmt.Errorf("worker %s: interrupt called in state %s, want %s", w.id, w.status, StatusLive)
	}
	if _, err := w.oplogSvc.Append(ctx, w.id, oplog.OplogEntry{
		Kind:      oplog.KindInterrupted,
		Timestamp: time.Now().UTC(),
		Interrupted: &oplog.InterruptedPayload{Requested: true},
	}); err != nil {
		return fmt.Errorf("worker %s: journal interrupt: %w", w.id, err)
	}
	w.status = StatusInterrupted
	if recoverImmediately {
		w.status = StatusLive
	}
	return nil
}

// Resume transitions an Interrupted worker back to Live.
func (w *ActiveWorker) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusInterrupted {
		return fmt.Errorf("worker %s: resume called in state %s, want %s", w.id, w.status, StatusInterrupted)
	}
	w.status = StatusLive
	w.touch()
	return nil
}

// Fail marks the worker Failed, appending an Error entry so that replay
// observes the same terminal state.
func (w *ActiveWorker) Fail(ctx context.Context, cause error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = StatusFailed
	_, err := w.oplogSvc.Append(ctx, w.id, oplog.OplogEntry{
		Kind:      oplog.KindError,
		Timestamp: time.Now(),
		Error:     &oplog.ErrorPayload{Message: cause.Error()},
	})
	return err
}

// updateModeSnapshot is the UpdateWorkerPayload.Mode value requesting
// guest-driven save/load state transfer, as opposed to "automatic" (the
// default, and the only mode this package implements: see UpdateWorker in
// pkg/executor for why snapshot mode is a disclosed non-goal here).
const updateModeSnapshot = "snapshot"

// ComponentVersion returns the component version this worker is currently
// running, as set at Create and advanced by any automatic-mode
// UpdateWorker entry observed on replay.
func (w *ActiveWorker) ComponentVersion() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.componentVersion
}

// SetComponentVersion records the component version a Create entry
// specified. Called once by the registry right after NewActiveWorker,
// before Activate runs, so that a worker with no UpdateWorker entries
// still reports the version it was created at.
func (w *ActiveWorker) SetComponentVersion(version uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.componentVersion = version
}

// BeginAtomicRegion journals the start of a guest-bracketed atomic region
// and returns its id, to be passed back to EndAtomicRegion once the guest
// closes it. Only valid on a Live worker; a region left open when the
// worker suspends or crashes is treated as aborted on the next replay
// (§4.2 "Atomic regions").
func (w *ActiveWorker) BeginAtomicRegion(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusLive {
		return "", fmt.Errorf("worker %s: begin atomic region called in state %s, want %s", w.id, w.status, StatusLive)
	}

	w.atomicRegionSeq++
	regionID := fmt.Sprintf("%s-%d", w.id, w.atomicRegionSeq)

	if _, err := w.oplogSvc.Append(ctx, w.id, oplog.OplogEntry{
		Kind:              oplog.KindBeginAtomicRegion,
		Timestamp:         time.Now().UTC(),
		BeginAtomicRegion: &oplog.BeginAtomicRegionPayload{RegionID: regionID},
	}); err != nil {
		return "", fmt.Errorf("worker %s: journal begin atomic region: %w", w.id, err)
	}

	if w.openRegions == nil {
		w.openRegions = make(map[string]bool)
	}
	w.openRegions[regionID] = true
	return regionID, nil
}

// EndAtomicRegion journals the close of a region previously opened by
// BeginAtomicRegion.
func (w *ActiveWorker) EndAtomicRegion(ctx context.Context, regionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != StatusLive {
		return fmt.Errorf("worker %s: end atomic region called in state %s, want %s", w.id, w.status, StatusLive)
	}
	if !w.openRegions[regionID] {
		return fmt.Errorf("worker %s: end atomic region %s: no matching begin", w.id, regionID)
	}

	if _, err := w.oplogSvc.Append(ctx, w.id, oplog.OplogEntry{
		Kind:            oplog.KindEndAtomicRegion,
		Timestamp:       time.Now().UTC(),
		EndAtomicRegion: &oplog.EndAtomicRegionPayload{RegionID: regionID},
	}); err != nil {
		return fmt.Errorf("worker %s: journal end atomic region: %w", w.id, err)
	}
	delete(w.openRegions, regionID)
	return nil
}
