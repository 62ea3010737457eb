// Package shardmanager implements the Shard Manager (§4.5): pod
// registration, heartbeat-based failure detection, least-loaded-first
// rebalancing with bounded migration, and Raft-backed persistence of the
// shard assignment so a restart resumes from the last announced
// generation before any AssignShardIds/RevokeShardIds push.
package shardmanager
