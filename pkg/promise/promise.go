package promise

import (
	"context"
	"fmt"
	"sync"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/metrics"
)

// Result is the payload a promise is completed with.
type Result struct {
	Value []byte
	Err   error
}

// PromiseNotFound is returned by Complete or Await when the id has never
// been created on this pod and was never forgotten either - it simply
// doesn't exist (§7).
type PromiseNotFound struct {
	ID ids.PromiseId
}

func (e *PromiseNotFound) Error() string {
	return fmt.Sprintf("promise: %s not found", e.ID)
}

// PromiseDropped is returned by Complete or Await when the id was created
// and later forgotten (its owning invocation already observed completion
// and released it), distinguishing a late-arriving completion from one
// that addresses a promise that was never created at all.
type PromiseDropped struct {
	ID ids.PromiseId
}

func (e *PromiseDropped) Error() string {
	return fmt.Sprintf("promise: %s was dropped", e.ID)
}

// PromiseAlreadyCompleted is defined for §7's error taxonomy but never
// returned by Complete: I7 requires a second completion of the same
// promise to be a silent no-op, not an error, so a caller racing another
// completer never needs to distinguish "I completed it" from "someone
// else already did".
type PromiseAlreadyCompleted struct {
	ID ids.PromiseId
}

func (e *PromiseAlreadyCompleted) Error() string {
	return fmt.Sprintf("promise: %s already completed", e.ID)
}

// pending tracks one not-yet-completed promise: a single-subscriber
// completion channel plus the result once it arrives, so that late
// Await calls after completion still observe it (I7: completion is
// idempotent and must be visible regardless of call order).
type pending struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	result    Result
}

// Service is the worker-scoped awaitable store described in §4.8: promises
// are created by a CreatePromise oplog entry and identified by
// (WorkerId, CreationOplogIndex); completion routes to the owning shard
// and appends a CompletePromise entry on the target worker.
//
// Narrowed from the teacher's pub/sub Broker (arbitrary subscriber count,
// event-type routing) to single-subscriber completion, since a promise has
// exactly one eventual awaiter by construction — the invocation that
// created it.
type Service struct {
	mu        sync.Mutex
	promises  map[ids.PromiseId]*pending
	forgotten map[ids.PromiseId]bool
}

// NewService constructs an empty promise service.
func NewService() *Service {
	return &Service{
		promises:  make(map[ids.PromiseId]*pending),
		forgotten: make(map[ids.PromiseId]bool),
	}
}

// Create registers a new pending promise. Called when a worker appends a
// CreatePromise oplog entry; the PromiseId is deterministic
// (WorkerId + OplogIndex) so replay reconstructs the same id without
// re-creating the promise.
func (s *Service) Create(id ids.PromiseId) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.promises[id]; exists {
		return
	}
	s.promises[id] = &pending{done: make(chan struct{})}
	metrics.PromisesPending.Inc()
}

// Complete resolves a promise with result. A second completion of the same
// promise is a no-op (I7).
func (s *Service) Complete(id ids.PromiseId, result Result) error {
	s.mu.Lock()
	p, exists := s.promises[id]
	forgotten := s.forgotten[id]
	s.mu.Unlock()
	if !exists {
		if forgotten {
			return &PromiseDropped{ID: id}
		}
		return &PromiseNotFound{ID: id}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return nil
	}
	p.completed = true
	p.result = result
	close(p.done)
	metrics.PromisesPending.Dec()
	return nil
}

// Await blocks until id is completed or ctx is cancelled. Awaiting a
// promise that was never created is a fatal guest error, distinct from a
// promise that exists but has not yet completed.
func (s *Service) Await(ctx context.Context, id ids.PromiseId) (Result, error) {
	s.mu.Lock()
	p, exists := s.promises[id]
	forgotten := s.forgotten[id]
	s.mu.Unlock()
	if !exists {
		if forgotten {
			return Result{}, &PromiseDropped{ID: id}
		}
		return Result{}, &PromiseNotFound{ID: id}
	}

	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Forget discards a completed promise's bookkeeping. Safe to call only
// after the owning worker's invocation has observed the completion.
func (s *Service) Forget(id ids.PromiseId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.promises, id)
	s.forgotten[id] = true
}

// PendingCount returns the number of promises awaiting completion.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.promises {
		p.mu.Lock()
		if !p.completed {
			count++
		}
		p.mu.Unlock()
	}
	return count
}
