package executor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golem-project/golem-core/pkg/component"
	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/golem-project/golem-core/pkg/promise"
	"github.com/golem-project/golem-core/pkg/schedule"
	"github.com/golem-project/golem-core/pkg/worker"
)

// ErrWorkerAlreadyExists is returned by CreateWorker when the target
// worker id already has a non-empty oplog.
var ErrWorkerAlreadyExists = fmt.Errorf("executor: worker already exists")

// ErrWorkerNotFound is returned by any operation addressing a worker id
// with no Create entry in its oplog.
var ErrWorkerNotFound = fmt.Errorf("executor: worker not found")

// ErrInvalidShardId is returned when a request addresses a worker whose
// shard this executor does not currently own (§6 "InvalidShardId{expected}").
type ErrInvalidShardId struct {
	WorkerID ids.WorkerId
	ShardID  ids.ShardId
}

func (e *ErrInvalidShardId) Error() string {
	return fmt.Sprintf("executor: shard %s (worker %s) not owned by this pod", e.ShardID, e.WorkerID)
}

// Config bundles the collaborators an Executor needs, decoupled from how
// any one of them is constructed so tests can substitute fakes freely.
type Config struct {
	Oplog          oplog.Service
	Loader         component.Loader
	Shards         *ShardSet
	TotalShards    uint32
	MemoryCapBytes uint64
	Invoker        worker.Invoker
	NewInstance    func(ctx context.Context, componentID string) (worker.Instance, error)
}

// Executor is the top-level per-pod worker-lifecycle and invocation
// surface (§6): it wires the active-worker registry, the oplog, the
// promise service, and the per-pod scheduler behind the RPCs an executor
// process exposes, and tracks which shards this pod currently owns so a
// request addressing an unowned shard fails fast with InvalidShardId
// rather than silently double-activating a worker elsewhere (I5).
type Executor struct {
	oplogSvc    oplog.Service
	loader      component.Loader
	shards      *ShardSet
	totalShards uint32
	invoker     worker.Invoker

	registry  *worker.Registry
	promises  *promise.Service
	scheduler *schedule.Scheduler
	events    *eventBus
}

// New constructs an Executor. If cfg.NewInstance is nil, a stub factory is
// used that merely resolves and validates the component artifact through
// cfg.Loader — interpreting the component's code is delegated to a
// WebAssembly engine, out of scope for this package (§9 non-goals); the
// stub exercises the Loader boundary a real wazero-backed factory would
// also exercise.
func New(cfg Config) *Executor {
	newInstance := cfg.NewInstance
	if newInstance == nil {
		newInstance = stubInstanceFactory(cfg.Loader)
	}

	e := &Executor{
		oplogSvc:    cfg.Oplog,
		loader:      cfg.Loader,
		shards:      cfg.Shards,
		totalShards: cfg.TotalShards,
		invoker:     cfg.Invoker,
		promises:    promise.NewService(),
		scheduler:   schedule.NewScheduler(),
		events:      newEventBus(),
	}
	e.registry = worker.NewRegistry(cfg.Oplog, cfg.Shards, cfg.TotalShards, cfg.MemoryCapBytes, newInstance, cfg.Invoker)
	return e
}

type stubInstance struct{}

func (stubInstance) LinearMemoryBytes() uint64     { return 0 }
func (stubInstance) Close(_ context.Context) error { return nil }

func stubInstanceFactory(loader component.Loader) func(ctx context.Context, componentID string) (worker.Instance, error) {
	return func(ctx context.Context, componentID string) (worker.Instance, error) {
		version, err := loader.GetLatestVersion(ctx, componentID)
		if err != nil {
			return nil, fmt.Errorf("executor: resolve latest version of %s: %w", componentID, err)
		}
		if _, err := loader.GetArtifact(ctx, componentID, version); err != nil {
			return nil, fmt.Errorf("executor: load artifact %s@%d: %w", componentID, version, err)
		}
		return stubInstance{}, nil
	}
}

// checkOwned fails a request addressing a worker whose shard this pod does
// not currently own. Generation 0 means this pod has never accepted an
// assignment from the Shard Manager at all, which is reported distinctly
// from an assignment that has simply moved elsewhere (§7 ShardingNotReady).
func (e *Executor) checkOwned(id ids.WorkerId) error {
	if e.shards.Generation() == 0 {
		return &ShardingNotReady{WorkerID: id}
	}
	shard := ids.Shard(id, e.totalShards)
	if !e.shards.Owns(shard) {
		return &ErrInvalidShardId{WorkerID: id, ShardID: shard}
	}
	return nil
}

// componentOf reads the ComponentID and ComponentVersion recorded in a
// worker's Create entry, the only way to learn them again once the worker
// is no longer resident.
func (e *Executor) componentOf(ctx context.Context, id ids.WorkerId) (string, uint64, error) {
	entries, err := e.oplogSvc.Read(ctx, id, 1, 1)
	if err != nil {
		return "", 0, err
	}
	if len(entries) == 0 || entries[0].Kind != oplog.KindCreate || entries[0].Create == nil {
		return "", 0, ErrWorkerNotFound
	}
	return entries[0].Create.ComponentID, entries[0].Create.ComponentVersion, nil
}

// activate resolves the worker's componentID and version from its Create
// entry and hands off to the registry, which reuses a resident instance or
// replays the worker from scratch.
func (e *Executor) activate(ctx context.Context, id ids.WorkerId) (*worker.ActiveWorker, error) {
	if err := e.checkOwned(id); err != nil {
		return nil, err
	}
	componentID, version, err := e.componentOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.registry.GetOrActivate(ctx, id, componentID, version)
}

// CreateWorker appends the worker's Create entry and activates it
// immediately so a bad component reference surfaces as WorkerCreationFailed
// rather than being deferred to the first invocation.
func (e *Executor) CreateWorker(ctx context.Context, id ids.WorkerId, componentID string, version uint64, args []string, env map[string]string) error {
	if err := e.checkOwned(id); err != nil {
		return err
	}

	length, err := e.oplogSvc.Length(ctx, id)
	if err != nil {
		return fmt.Errorf("executor: check existing oplog length: %w", err)
	}
	if length > 0 {
		return ErrWorkerAlreadyExists
	}

	if _, err := e.oplogSvc.Append(ctx, id, oplog.OplogEntry{
		Kind:      oplog.KindCreate,
		Timestamp: time.Now().UTC(),
		Create: &oplog.CreatePayload{
			ComponentID:      componentID,
			ComponentVersion: version,
			Args:             args,
			Env:              env,
		},
	}); err != nil {
		return fmt.Errorf("executor: journal create: %w", err)
	}

	if _, err := e.registry.GetOrActivate(ctx, id, componentID, version); err != nil {
		_ = e.oplogSvc.Delete(ctx, id)
		return &WorkerCreationFailed{WorkerID: id, Err: err}
	}

	e.events.publishLifecycle(id, "created")
	return nil
}

// InvokeAndAwait activates the worker if necessary and blocks for the
// function's result, deduplicating by idempotencyKey (I2).
func (e *Executor) InvokeAndAwait(ctx context.Context, id ids.WorkerId, idempotencyKey, functionName string, params [][]byte) ([][]byte, error) {
	w, err := e.activate(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.Invoke(ctx, e.invoker, idempotencyKey, functionName, params)
}

// Invoke activates the worker synchronously but runs the invocation itself
// in the background, for fire-and-forget callers (§6 "ack").
func (e *Executor) Invoke(ctx context.Context, id ids.WorkerId, idempotencyKey, functionName string, params [][]byte) error {
	w, err := e.activate(ctx, id)
	if err != nil {
		return err
	}
	go func() {
		if _, err := w.Invoke(context.Background(), e.invoker, idempotencyKey, functionName, params); err != nil {
			log.WithWorkerID(id.String()).Error().Err(err).Str("function", functionName).Msg("fire-and-forget invocation failed")
		}
	}()
	return nil
}

// Metadata is the GetMetadata response shape.
type Metadata struct {
	Status           worker.Status
	ComponentVersion uint64
	RetryPolicy      oplog.RetryPolicy
}

// GetMetadata reports a worker's best-known status without activating it:
// if resident, status, component version, and retry policy come from the
// live ActiveWorker - its version may be ahead of the Create entry's if an
// automatic-mode UpdateWorker has since replayed; otherwise status is
// reported as Suspended and the version falls back to the Create entry's
// (the worker's oplog exists but nothing is resident to answer more
// precisely).
func (e *Executor) GetMetadata(ctx context.Context, id ids.WorkerId) (Metadata, error) {
	entries, err := e.oplogSvc.Read(ctx, id, 1, 1)
	if err != nil {
		return Metadata{}, err
	}
	if len(entries) == 0 || entries[0].Kind != oplog.KindCreate || entries[0].Create == nil {
		return Metadata{}, ErrWorkerNotFound
	}
	version := entries[0].Create.ComponentVersion

	if w, ok := e.registry.Peek(id); ok {
		return Metadata{Status: w.Status(), ComponentVersion: w.ComponentVersion(), RetryPolicy: w.RetryPolicy()}, nil
	}
	return Metadata{Status: worker.StatusSuspended, ComponentVersion: version}, nil
}

// InterruptWorker requires the worker to be resident (only a live worker
// has anything to interrupt).
func (e *Executor) InterruptWorker(ctx context.Context, id ids.WorkerId, recoverImmediately bool) error {
	if err := e.checkOwned(id); err != nil {
		return err
	}
	w, ok := e.registry.Peek(id)
	if !ok {
		return ErrWorkerNotFound
	}
	if err := w.Interrupt(ctx, recoverImmediately); err != nil {
		return err
	}
	e.events.publishLifecycle(id, "interrupted")
	return nil
}

// ResumeWorker transitions a resident Interrupted worker back to Live.
func (e *Executor) ResumeWorker(id ids.WorkerId) error {
	w, ok := e.registry.Peek(id)
	if !ok {
		return ErrWorkerNotFound
	}
	if err := w.Resume(); err != nil {
		return err
	}
	e.events.publishLifecycle(id, "resumed")
	return nil
}

// DeleteWorker suspends and drops any resident instance, then erases the
// worker's entire oplog.
func (e *Executor) DeleteWorker(ctx context.Context, id ids.WorkerId) error {
	if w, ok := e.registry.Peek(id); ok {
		_ = w.Suspend(ctx)
		e.registry.Drop(id)
	}
	if err := e.oplogSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("executor: delete oplog: %w", err)
	}
	e.events.publishLifecycle(id, "deleted")
	return nil
}

// UpdateWorker journals the target component version a subsequent
// activation should run against, along with the requested mode. In
// "automatic" mode, replay advances the worker's reported component version
// and nothing else - the new code must be able to pick up the guest's
// existing linear-memory state with no special transfer step. "snapshot"
// mode, which asks the guest to serialize and restore its own state across
// the version boundary, is journaled faithfully but left unimplemented by
// replay (see updateModeSnapshot in pkg/worker): there is no guest save/load
// ABI in this codebase to drive, so a snapshot-mode update is recorded but
// has no effect beyond that until such an ABI exists.
func (e *Executor) UpdateWorker(ctx context.Context, id ids.WorkerId, targetVersion uint64, mode string) error {
	if err := e.checkOwned(id); err != nil {
		return err
	}
	if _, err := e.oplogSvc.Append(ctx, id, oplog.OplogEntry{
		Kind:      oplog.KindUpdateWorker,
		Timestamp: time.Now().UTC(),
		UpdateWorker: &oplog.UpdateWorkerPayload{
			TargetComponentVersion: targetVersion,
			Mode:                   mode,
		},
	}); err != nil {
		return fmt.Errorf("executor: journal update: %w", err)
	}
	log.WithWorkerID(id.String()).Info().Uint64("target_version", targetVersion).Str("mode", mode).Msg("worker update requested")
	return nil
}

// RevertTarget mirrors rpcproto.RevertTarget without importing it, keeping
// this package's public surface independent of the wire-level types.
type RevertTarget struct {
	LastInvocations int32
	ToOplogIndex    uint64
	ByIndex         bool
}

// RevertWorker truncates a worker's effective oplog to the computed cutoff
// index and drops any resident instance so the next activation replays the
// reverted prefix (I1).
func (e *Executor) RevertWorker(ctx context.Context, id ids.WorkerId, target RevertTarget) error {
	cutoff, err := e.resolveRevertTarget(ctx, id, target)
	if err != nil {
		return err
	}

	if _, err := e.oplogSvc.Append(ctx, id, oplog.OplogEntry{
		Kind:      oplog.KindRevert,
		Timestamp: time.Now().UTC(),
		Revert:    &oplog.RevertPayload{TargetIndex: cutoff},
	}); err != nil {
		return fmt.Errorf("executor: journal revert: %w", err)
	}

	if w, ok := e.registry.Peek(id); ok {
		_ = w.Suspend(ctx)
		e.registry.Drop(id)
	}
	return nil
}

func (e *Executor) resolveRevertTarget(ctx context.Context, id ids.WorkerId, target RevertTarget) (oplog.OplogIndex, error) {
	if target.ByIndex {
		return oplog.OplogIndex(target.ToOplogIndex), nil
	}

	length, err := e.oplogSvc.Length(ctx, id)
	if err != nil {
		return 0, err
	}
	entries, err := e.oplogSvc.ReadPrefixEndingAt(ctx, id, oplog.OplogIndex(length))
	if err != nil {
		return 0, err
	}

	remaining := int(target.LastInvocations)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind != oplog.KindExportedFunctionInvoked {
			continue
		}
		remaining--
		if remaining == 0 {
			if i == 0 {
				return 0, nil
			}
			return entries[i-1].Index, nil
		}
	}
	return 0, fmt.Errorf("executor: revert: fewer than %d invocations recorded", target.LastInvocations)
}

// CompletePromise resolves a pending promise and, if its owning worker is
// not resident, activates it so the CompletePromise entry lands on the
// right log (§4.8). The resolve-then-journal sequence is bracketed in an
// atomic region: a crash between completing the promise and journaling that
// fact must not leave the worker able to replay into a state where the
// promise looks uncompleted while its awaiter already observed the value
// (§4.2).
func (e *Executor) CompletePromise(ctx context.Context, promiseID ids.PromiseId, payload []byte) error {
	w, err := e.activate(ctx, promiseID.WorkerId)
	if err != nil {
		return err
	}

	regionID, err := w.BeginAtomicRegion(ctx)
	if err != nil {
		return err
	}

	if err := e.promises.Complete(promiseID, promise.Result{Value: payload}); err != nil {
		return err
	}

	sum := sha256.Sum256(payload)
	if _, err := e.oplogSvc.Append(ctx, promiseID.WorkerId, oplog.OplogEntry{
		Kind:      oplog.KindCompletePromise,
		Timestamp: time.Now().UTC(),
		CompletePromise: &oplog.CompletePromisePayload{
			PromiseOplogIndex: oplog.OplogIndex(promiseID.OplogIndex),
			ResultHash:        sum[:],
		},
	}); err != nil {
		return fmt.Errorf("executor: journal promise completion: %w", err)
	}

	return w.EndAtomicRegion(ctx, regionID)
}

// AssignShardIds admits newly owned shards (pod-inbound push from the
// Shard Manager, §4.5).
func (e *Executor) AssignShardIds(generation uint64, shards []ids.ShardId) {
	e.shards.Assign(generation, shards)
}

// RevokeShardIds drops ownership of shards and evicts every worker
// resident under them.
func (e *Executor) RevokeShardIds(ctx context.Context, generation uint64, shards []ids.ShardId) {
	e.shards.Revoke(generation, shards)
	for _, shard := range shards {
		e.registry.RevokeShard(ctx, shard)
	}
}

// Oplog exposes the underlying oplog service for GetOplog streaming.
func (e *Executor) Oplog() oplog.Service { return e.oplogSvc }

// Events exposes the lifecycle event bus for ConnectWorker streaming.
func (e *Executor) Events() *eventBus { return e.events }

// Scheduler exposes the per-pod scheduler so callers (e.g. a memory
// governor sweep, promise timeouts) can register due-time entries.
func (e *Executor) Scheduler() *schedule.Scheduler { return e.scheduler }

// Registry exposes the active-worker registry, e.g. for calling
// EnforceMemoryLimit; no periodic sweep in this module calls it.
func (e *Executor) Registry() *worker.Registry { return e.registry }
