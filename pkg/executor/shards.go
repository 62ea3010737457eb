package executor

import (
	"sync"

	"github.com/golem-project/golem-core/pkg/ids"
)

// ShardSet tracks the shard ids this executor pod currently owns, as
// announced by the Shard Manager's AssignShardIds/RevokeShardIds pushes. It
// satisfies both worker.ShardOwnership and rpcfabric.ShardOwnership so the
// registry and the RPC fabric consult the same source of truth (§4.5).
type ShardSet struct {
	mu         sync.RWMutex
	generation uint64
	owned      map[ids.ShardId]bool
}

func NewShardSet() *ShardSet {
	return &ShardSet{owned: make(map[ids.ShardId]bool)}
}

// Owns reports whether shard is currently owned by this pod.
func (s *ShardSet) Owns(shard ids.ShardId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned[shard]
}

// Generation returns the assignment generation of the last accepted
// Assign/Revoke push.
func (s *ShardSet) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Assign admits shards under generation. A generation older than the one
// already recorded is ignored, since routing clients and the manager may
// retry a stale push after a newer one already landed.
func (s *ShardSet) Assign(generation uint64, shards []ids.ShardId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation < s.generation {
		return
	}
	s.generation = generation
	for _, shard := range shards {
		s.owned[shard] = true
	}
}

// Revoke drops shards under generation, subject to the same stale-generation
// guard as Assign.
func (s *ShardSet) Revoke(generation uint64, shards []ids.ShardId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation < s.generation {
		return
	}
	s.generation = generation
	for _, shard := range shards {
		delete(s.owned, shard)
	}
}

// Owned returns a snapshot of the currently owned shard ids.
func (s *ShardSet) Owned() []ids.ShardId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ids.ShardId, 0, len(s.owned))
	for shard := range s.owned {
		out = append(out, shard)
	}
	return out
}
