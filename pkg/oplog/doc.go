/*
Package oplog implements the durable, append-only log that backs every
worker's execution history.

Each worker has its own independent, strictly-ordered log of OplogEntry
values. Replay reconstructs worker state by reading the log from index 1
forward and re-executing exported function invocations against the
recorded results of imported function calls, rather than against the
outside world, so that replay is deterministic regardless of what the
outside world does on subsequent runs.

The default Service implementation, BoltStore, keeps one bbolt bucket per
worker nested under a shared root bucket, keyed by the entry's big-endian
OplogIndex so that key order matches index order.
*/
package oplog
