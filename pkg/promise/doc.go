/*
Package promise implements the worker-scoped awaitable described in §4.8:
a Promise is identified by (WorkerId, CreationOplogIndex), created once by
a CreatePromise oplog entry, and completed at most once. Completion is
idempotent; Await blocks until completion or context cancellation.
*/
package promise
