package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

const defaultCallTimeout = 10 * time.Second

// Table is a generation-tagged snapshot of the shard-to-pod assignment
// (§4.5). Generations only move forward; a client holding a stale
// generation refreshes rather than trusting a cached entry.
type Table struct {
	Generation uint64
	Assignment map[ids.ShardId]rpcproto.Pod
}

func (t Table) lookup(shard ids.ShardId) (rpcproto.Pod, bool) {
	pod, ok := t.Assignment[shard]
	return pod, ok
}

// Cache holds the client-side routing table and refreshes it on a cache
// miss or an InvalidShardId response from a downstream call, matching the
// client wrapper-per-RPC-call idiom (each method below owns its own
// per-call deadline, mirroring pkg/client/client.go's
// context.WithTimeout-per-call shape).
type Cache struct {
	mu          sync.RWMutex
	table       Table
	client      rpcproto.ShardManagerClient
	callTimeout time.Duration
}

func NewCache(client rpcproto.ShardManagerClient) *Cache {
	return &Cache{
		client:      client,
		callTimeout: defaultCallTimeout,
		table:       Table{Assignment: make(map[ids.ShardId]rpcproto.Pod)},
	}
}

// Resolve returns the pod owning shard, refreshing the cache first if the
// shard is unknown locally.
func (c *Cache) Resolve(ctx context.Context, shard ids.ShardId) (rpcproto.Pod, error) {
	c.mu.RLock()
	pod, ok := c.table.lookup(shard)
	c.mu.RUnlock()
	if ok {
		return pod, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return rpcproto.Pod{}, fmt.Errorf("routing: refresh after miss for shard %s: %w", shard, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	pod, ok = c.table.lookup(shard)
	if !ok {
		return rpcproto.Pod{}, fmt.Errorf("routing: shard %s has no owner after refresh", shard)
	}
	return pod, nil
}

// ResolveAfterInvalidShard is called by an RPC client after receiving an
// InvalidShardId error from a pod: the cached assignment is stale, so it
// forces a refresh before re-resolving.
func (c *Cache) ResolveAfterInvalidShard(ctx context.Context, shard ids.ShardId) (rpcproto.Pod, error) {
	if err := c.Refresh(ctx); err != nil {
		return rpcproto.Pod{}, fmt.Errorf("routing: refresh after invalid-shard for %s: %w", shard, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	pod, ok := c.table.lookup(shard)
	if !ok {
		return rpcproto.Pod{}, fmt.Errorf("routing: shard %s has no owner after refresh", shard)
	}
	return pod, nil
}

// Refresh fetches the current routing table unconditionally. Callers
// normally reach it via Resolve/ResolveAfterInvalidShard; exported so a
// background refresher can poll it directly.
func (c *Cache) Refresh(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	resp, err := c.client.GetRoutingTable(callCtx, &rpcproto.GetRoutingTableRequest{})
	if err != nil {
		return fmt.Errorf("routing: GetRoutingTable: %w", err)
	}

	assignment := make(map[ids.ShardId]rpcproto.Pod, len(resp.Assignment))
	for shard, pod := range resp.Assignment {
		assignment[ids.ShardId(shard)] = pod
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if resp.Generation < c.table.Generation {
		// Stale response from a slow call racing a newer refresh; ignore.
		return nil
	}
	c.table = Table{Generation: resp.Generation, Assignment: assignment}
	return nil
}

// CurrentGeneration returns the generation of the locally cached table.
func (c *Cache) CurrentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Generation
}

// Size reports how many shards the cached table currently maps.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table.Assignment)
}
