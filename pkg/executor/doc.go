// Package executor implements the per-pod worker-lifecycle and invocation
// surface (§6): it wires worker.Registry, oplog.Service, promise.Service,
// and schedule.Scheduler behind the gRPC ExecutorServer and PodControlServer
// contracts, and tracks the shard ids this pod currently owns so a request
// addressing an unowned shard fails fast with InvalidShardId rather than
// silently double-activating a worker resident elsewhere (I5).
package executor
