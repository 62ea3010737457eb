// Package ids defines the identifier types shared across the shard
// manager, executor, oplog, and RPC fabric packages.
package ids
