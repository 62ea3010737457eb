package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/oplog"
)

// ShardOwnership answers whether this executor currently owns the shard a
// worker id hashes to, in the latest assignment generation it has
// accepted. The registry consults it before activating a worker so that a
// stale request lands on InvalidShardId instead of double-activating a
// worker elsewhere (I5).
type ShardOwnership interface {
	Owns(shardID ids.ShardId) bool
}

// ErrInvalidShardId is returned by GetOrActivate when the requested
// worker hashes to a shard this executor does not currently own.
type ErrInvalidShardId struct {
	WorkerID ids.WorkerId
	ShardID  ids.ShardId
}

func (e *ErrInvalidShardId) Error() string {
	return fmt.Sprintf("worker %s: shard %s not owned by this executor", e.WorkerID, e.ShardID)
}

// Registry maintains the WorkerId -> ActiveWorker mapping for workers
// resident on this executor, and enforces the memory governor's soft cap
// by evicting idle workers LRU-first. Live workers are never forcibly
// evicted (I8).
type Registry struct {
	mu sync.Mutex

	workers map[ids.WorkerId]*ActiveWorker

	oplogSvc    oplog.Service
	ownership   ShardOwnership
	totalShards uint32
	memoryCap   uint64
	invoker     Invoker

	newInstance func(ctx context.Context, componentID string) (Instance, error)
}

// NewRegistry constructs an empty registry. newInstance constructs the
// WASM instance backing a worker (production wiring supplies a
// wazero-backed constructor); invoker runs a worker's exported functions,
// both live and during replay re-execution; memoryCapBytes is the soft
// cap enforced at admission and by EnforceMemoryLimit.
func NewRegistry(
	oplogSvc oplog.Service,
	ownership ShardOwnership,
	totalShards uint32,
	memoryCapBytes uint64,
	newInstance func(ctx context.Context, componentID string) (Instance, error),
	invoker Invoker,
) *Registry {
	return &Registry{
		workers:     make(map[ids.WorkerId]*ActiveWorker),
		oplogSvc:    oplogSvc,
		ownership:   ownership,
		totalShards: totalShards,
		memoryCap:   memoryCapBytes,
		newInstance: newInstance,
		invoker:     invoker,
	}
}

// GetOrActivate returns the resident ActiveWorker for id, activating it
// (constructing its instance and replaying its oplog) if it is not
// already resident. componentID and componentVersion are required only
// on first activation.
func (r *Registry) GetOrActivate(ctx context.Context, id ids.WorkerId, componentID string, componentVersion uint64) (*ActiveWorker, error) {
	shardID := ids.Shard(id, r.totalShards)
	if !r.ownership.Owns(shardID) {
		return nil, &ErrInvalidShardId{WorkerID: id, ShardID: shardID}
	}

	r.mu.Lock()
	if existing, ok := r.workers[id]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	w := NewActiveWorker(id, componentID, r.oplogSvc)
	w.SetComponentVersion(componentVersion)

	if err := r.admit(ctx, w); err != nil {
		return nil, err
	}

	if err := w.Activate(ctx, r.newInstance, r.invoker); err != nil {
		r.mu.Lock()
		delete(r.workers, id)
		r.mu.Unlock()
		return nil, err
	}

	metrics.ActiveWorkersTotal.Set(float64(r.Count()))
	return w, nil
}

// admit registers w in the registry, first evicting idle workers until its
// estimated footprint fits under the cap.
func (r *Registry) admit(ctx context.Context, w *ActiveWorker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers[w.id] = w

	if r.memoryCap == 0 {
		return nil
	}

	for r.totalMemoryLocked()+DefaultInstanceOverheadBytes > r.memoryCap {
		victim := r.pickEvictionVictimLocked(w.id)
		if victim == nil {
			break
		}
		if err := victim.Suspend(ctx); err != nil {
			log.Error(fmt.Sprintf("memory governor: failed to evict worker %s: %v", victim.id, err))
			break
		}
		delete(r.workers, victim.id)
		metrics.WorkerEvictionsTotal.WithLabelValues("memory_pressure").Inc()
	}

	return nil
}

func (r *Registry) totalMemoryLocked() uint64 {
	var total uint64
	for _, w := range r.workers {
		total += w.MemoryEstimateBytes()
	}
	return total
}

// pickEvictionVictimLocked returns the least-recently-active non-Live,
// non-excluded worker, or nil if none is eligible.
func (r *Registry) pickEvictionVictimLocked(exclude ids.WorkerId) *ActiveWorker {
	var candidates []*ActiveWorker
	for id, w := range r.workers {
		if id == exclude {
			continue
		}
		if w.Status() == StatusLive {
			continue
		}
		candidates = append(candidates, w)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastActivity().Before(candidates[j].LastActivity())
	})
	return candidates[0]
}

// Peek returns the resident ActiveWorker for id without activating it, for
// callers (GetMetadata, InterruptWorker) that must not trigger activation
// as a side effect of inspection.
func (r *Registry) Peek(id ids.WorkerId) (*ActiveWorker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	return w, ok
}

// Drop removes a worker from the registry without suspending it first;
// callers that need a graceful shutdown should call Suspend before Drop.
func (r *Registry) Drop(id ids.WorkerId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
	metrics.ActiveWorkersTotal.Set(float64(len(r.workers)))
}

// IterOwned calls fn for every worker currently resident in the registry.
func (r *Registry) IterOwned(fn func(*ActiveWorker)) {
	r.mu.Lock()
	workers := make([]*ActiveWorker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		fn(w)
	}
}

// EnforceMemoryLimit evicts idle workers until the registry's total
// estimated memory is under the configured cap. Nothing in this module
// calls it on a schedule; admission-time eviction (admit) is the only
// eviction that runs without an explicit call.
func (r *Registry) EnforceMemoryLimit(ctx context.Context) {
	if r.memoryCap == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.totalMemoryLocked() > r.memoryCap {
		victim := r.pickEvictionVictimLocked(ids.WorkerId{})
		if victim == nil {
			return
		}
		if err := victim.Suspend(ctx); err != nil {
			log.Error(fmt.Sprintf("memory governor: failed to evict worker %s: %v", victim.id, err))
			return
		}
		delete(r.workers, victim.id)
		metrics.WorkerEvictionsTotal.WithLabelValues("periodic_sweep").Inc()
	}

	metrics.MemoryGovernorPressureBytes.Set(float64(r.totalMemoryLocked()))
}

// Count returns the number of resident workers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// RevokeShard evicts every resident worker whose shard is shardID,
// draining them first. Called when the Shard Manager revokes ownership
// of shardID from this executor (§4.5).
func (r *Registry) RevokeShard(ctx context.Context, shardID ids.ShardId) {
	r.mu.Lock()
	var toEvict []*ActiveWorker
	for id, w := range r.workers {
		if ids.Shard(id, r.totalShards) == shardID {
			toEvict = append(toEvict, w)
		}
	}
	r.mu.Unlock()

	for _, w := range toEvict {
		if err := w.Suspend(ctx); err != nil {
			log.Error(fmt.Sprintf("revoke shard %s: failed to suspend worker %s: %v", shardID, w.id, err))
		}
		r.Drop(w.id)
	}
}
