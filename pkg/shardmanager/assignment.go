package shardmanager

import (
	"sort"

	"github.com/golem-project/golem-core/pkg/ids"
)

// Assignment is the authoritative shard-to-pod mapping at a point in time
// (§4.5). Generation only moves forward; pods and routing clients treat a
// lower generation as stale.
type Assignment struct {
	Generation uint64
	ShardOwner map[ids.ShardId]ids.PodId
}

func newAssignment(totalShards uint32) Assignment {
	owner := make(map[ids.ShardId]ids.PodId, totalShards)
	for i := uint32(0); i < totalShards; i++ {
		owner[ids.ShardId(i)] = ids.PodId{}
	}
	return Assignment{Generation: 0, ShardOwner: owner}
}

func (a Assignment) clone() Assignment {
	owner := make(map[ids.ShardId]ids.PodId, len(a.ShardOwner))
	for k, v := range a.ShardOwner {
		owner[k] = v
	}
	return Assignment{Generation: a.Generation, ShardOwner: owner}
}

func (a Assignment) shardsOf(pod ids.PodId) []ids.ShardId {
	var shards []ids.ShardId
	for shard, owner := range a.ShardOwner {
		if owner == pod {
			shards = append(shards, shard)
		}
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })
	return shards
}

// rebalanceMaxGap bounds how unequal healthy pods' shard counts may be
// before rebalance keeps migrating (§4.5: "max-min load gap is within a
// small constant").
const rebalanceMaxGap = 1

// rebalance places unowned shards onto the least-loaded healthy pod first,
// then migrates shards from the most-loaded to least-loaded pod until the
// max-min gap is within rebalanceMaxGap. It returns the updated assignment
// and the set of pods whose ownership changed (for AssignShardIds /
// RevokeShardIds push). A nil/empty healthy set clears all ownership.
func rebalance(current Assignment, healthy []ids.PodId) (Assignment, map[ids.PodId][]ids.ShardId, map[ids.PodId][]ids.ShardId) {
	next := current.clone()
	assigned := make(map[ids.PodId][]ids.ShardId)
	revoked := make(map[ids.PodId][]ids.ShardId)

	healthySet := make(map[ids.PodId]bool, len(healthy))
	for _, p := range healthy {
		healthySet[p] = true
	}

	// Revoke ownership from pods no longer healthy; those shards become
	// unowned and get placed below.
	for shard, owner := range next.ShardOwner {
		if owner != (ids.PodId{}) && !healthySet[owner] {
			revoked[owner] = append(revoked[owner], shard)
			next.ShardOwner[shard] = ids.PodId{}
		}
	}

	if len(healthy) == 0 {
		next.Generation++
		return next, assigned, revoked
	}

	load := make(map[ids.PodId]int, len(healthy))
	for _, p := range healthy {
		load[p] = 0
	}
	for _, owner := range next.ShardOwner {
		if owner != (ids.PodId{}) {
			load[owner]++
		}
	}

	leastLoaded := func() ids.PodId {
		var best ids.PodId
		bestLoad := int(^uint(0) >> 1)
		for _, p := range healthy {
			if load[p] < bestLoad {
				bestLoad = load[p]
				best = p
			}
		}
		return best
	}

	var unowned []ids.ShardId
	for shard, owner := range next.ShardOwner {
		if owner == (ids.PodId{}) {
			unowned = append(unowned, shard)
		}
	}
	sort.Slice(unowned, func(i, j int) bool { return unowned[i] < unowned[j] })

	for _, shard := range unowned {
		target := leastLoaded()
		next.ShardOwner[shard] = target
		load[target]++
		assigned[target] = append(assigned[target], shard)
	}

	for {
		var maxPod, minPod ids.PodId
		maxLoad, minLoad := -1, int(^uint(0)>>1)
		for _, p := range healthy {
			if load[p] > maxLoad {
				maxLoad = load[p]
				maxPod = p
			}
			if load[p] < minLoad {
				minLoad = load[p]
				minPod = p
			}
		}
		if maxLoad-minLoad <= rebalanceMaxGap {
			break
		}

		shards := next.shardsOf(maxPod)
		if len(shards) == 0 {
			break
		}
		moving := shards[0]
		next.ShardOwner[moving] = minPod
		load[maxPod]--
		load[minPod]++
		assigned[minPod] = append(assigned[minPod], moving)
		revoked[maxPod] = append(revoked[maxPod], moving)
	}

	if len(assigned) > 0 || len(revoked) > 0 {
		next.Generation++
	}
	return next, assigned, revoked
}
