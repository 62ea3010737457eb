package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golem-project/golem-core/pkg/oplog"
)

// Invoker executes a named exported function against a concrete WASM
// instance. Interpreting the function body is delegated to a WebAssembly
// engine (production wiring supplies a wazero-backed implementation); this
// package only brackets the call with the oplog markers replay needs to
// know an invocation was started and finished.
type Invoker interface {
	Invoke(ctx context.Context, instance Instance, functionName string, params [][]byte) ([][]byte, error)
}

// invocationOutcome is the process-local memo of a completed invocation,
// keyed by idempotency key so a duplicate InvokeAndAwait within the
// worker's current residency returns the same result without a second
// side-effecting call (I2). It is not itself journaled as bytes; instead
// replay repopulates it by actually re-running every recorded invocation
// (see ActiveWorker.replayInvocation), so a duplicate call after
// suspend/evict/reactivate still hits the cache instead of re-executing
// the guest export a second time.
type invocationOutcome struct {
	result [][]byte
	err    error
}

// Invoke runs functionName with params against the worker's live instance,
// bracketing the call with ExportedFunctionInvoked/ExportedFunctionCompleted
// oplog entries. idempotencyKey deduplicates repeat calls for the life of
// the worker's residency; an empty key means no deduplication is requested.
func (w *ActiveWorker) Invoke(ctx context.Context, invoker Invoker, idempotencyKey, functionName string, params [][]byte) ([][]byte, error) {
	w.mu.Lock()
	if w.status != StatusLive {
		status := w.status
		w.mu.Unlock()
		switch status {
		case StatusFailed:
			return nil, &PreviousInvocationFailed{WorkerID: w.id}
		case StatusExited:
			return nil, &PreviousInvocationExited{WorkerID: w.id}
		default:
			return nil, fmt.Errorf("worker %s: invoke called in state %s, want %s", w.id, status, StatusLive)
		}
	}
	if idempotencyKey != "" {
		if cached, ok := w.invocationCache[idempotencyKey]; ok {
			w.mu.Unlock()
			return cached.result, cached.err
		}
	}
	instance := w.instance
	w.mu.Unlock()

	begin := oplog.OplogEntry{
		Kind:      oplog.KindExportedFunctionInvoked,
		Timestamp: time.Now().UTC(),
		ExportedFunctionInvoked: &oplog.ExportedFunctionInvokedPayload{
			FunctionName: functionName,
			InvocationID: idempotencyKey,
			Params:       params,
		},
	}
	if _, err := w.oplogSvc.Append(ctx, w.id, begin); err != nil {
		return nil, fmt.Errorf("worker %s: journal invocation begin: %w", w.id, err)
	}

	start := time.Now()
	result, invokeErr := invoker.Invoke(ctx, instance, functionName, params)
	consumed := time.Since(start)

	if invokeErr != nil {
		if failErr := w.Fail(ctx, invokeErr); failErr != nil {
			return nil, failErr
		}
		w.memoizeOutcome(idempotencyKey, nil, invokeErr)
		return nil, invokeErr
	}

	sum := sha256.Sum256(bytes.Join(result, nil))
	complete := oplog.OplogEntry{
		Kind:      oplog.KindExportedFunctionCompleted,
		Timestamp: time.Now().UTC(),
		ExportedFunctionCompleted: &oplog.ExportedFunctionCompletedPayload{
			InvocationID: idempotencyKey,
			ResultHash:   sum[:],
			Consumed:     consumed,
		},
	}
	if _, err := w.oplogSvc.Append(ctx, w.id, complete); err != nil {
		return nil, fmt.Errorf("worker %s: journal invocation completion: %w", w.id, err)
	}

	w.mu.Lock()
	w.touch()
	w.mu.Unlock()

	w.memoizeOutcome(idempotencyKey, result, nil)
	return result, nil
}

func (w *ActiveWorker) memoizeOutcome(idempotencyKey string, result [][]byte, err error) {
	if idempotencyKey == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.invocationCache == nil {
		w.invocationCache = make(map[string]invocationOutcome)
	}
	w.invocationCache[idempotencyKey] = invocationOutcome{result: result, err: err}
}
