/*
Package metrics defines and registers the Prometheus metrics exposed by the
shard manager and executor processes.

Series are grouped by subsystem: oplog append/read latency, active-worker
registry size and evictions, memory-governor pressure, shard-assignment
generation and churn, RPC fabric latency and failures, scheduler queue
depth, promise completion latency, and the executor's own gRPC API
surface. Shard-manager Raft health (leadership, peer count, apply
latency) is exposed under the golem_shardmanager_raft_* prefix.

# Usage

	mux.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OplogAppendDuration)
*/
package metrics
