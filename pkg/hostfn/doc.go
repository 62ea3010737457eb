/*
Package hostfn implements the durable decorator every WASI / Golem host
import is wrapped in.

A Wrapper classifies its call as Local (touches only this worker's own
machine resources) or Remote (touches another worker or the outside
world), and drives it through the worker's current Mode: in ModeReplay it
consumes the next matching oplog entry instead of performing the effect;
in ModeLive it performs the effect and records the outcome before
returning to guest code. Concrete wrappers for clocks, randomness,
sockets, the filesystem, and key-value/blob reads/writes all follow this
same shape, each against a small backend interface (HTTPDoer, FileSystem,
KVStore) that keeps the real effect - the network, the disk, the external
store - a collaborator this package only calls through. Promises and RPC
are wrapped the same way but live in their owning packages (pkg/promise,
pkg/rpcfabric) since they need collaborators (the promise Service, the
routing cache) this package has no business depending on.
*/
package hostfn
