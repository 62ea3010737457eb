// Package rpcfabric resolves and performs worker-to-worker RPCs (§4.6):
// in-process when the target's shard is locally owned, otherwise over
// gRPC to the owning pod, with the call journaled through the
// host-function wrapper layer so replay reproduces the same result
// without redispatching.
package rpcfabric
