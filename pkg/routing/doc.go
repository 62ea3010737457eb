// Package routing caches the shard-to-pod routing table on the client
// side (worker RPC fabric, CLI, API gateway) and refreshes it on a cache
// miss or after a downstream InvalidShardId error, per §4.5.
package routing
