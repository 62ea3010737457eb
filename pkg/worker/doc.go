/*
Package worker implements the worker state machine, its replay engine,
and the active-worker registry with its memory governor.

A worker moves through Loading, Replaying, and Live, and from Live into
one of Suspended, Retrying, Interrupted, Failed, or Exited. ActiveWorker
holds the bookkeeping for a single resident worker; Registry maps WorkerId
to ActiveWorker for every worker resident on this executor and evicts
idle workers, least-recently-active first, when their combined estimated
memory exceeds the configured cap. Live workers are never evicted under
pressure.
*/
package worker
