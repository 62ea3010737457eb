package oplog

import (
	"context"

	"github.com/golem-project/golem-core/pkg/ids"
)

// Service is the durable, append-only log backing a single worker's
// execution history. Every exported/imported function invocation result
// and lifecycle transition passes through Append before becoming visible
// to the rest of the worker, so that a crash between an effect and its
// observation is impossible: the entry is either durable or it never
// happened.
//
// Translated from the Redis-stream-backed OplogService trait in the
// original implementation (append/get_size/delete/read over XADD/XLEN/
// DEL/XRANGE) to a BoltDB-backed store, matching this repo's storage
// idiom since Redis is not part of the dependency surface here.
type Service interface {
	// Append durably writes entries, returning the index assigned to the
	// first of them. Entries are assigned consecutive indexes starting
	// at Length(ctx, workerID)+1.
	Append(ctx context.Context, workerID ids.WorkerId, entries ...OplogEntry) (OplogIndex, error)

	// Length returns the number of entries currently in the worker's log.
	// A worker with no log yet has length 0.
	Length(ctx context.Context, workerID ids.WorkerId) (uint64, error)

	// Read returns up to n entries starting at index idx (inclusive). It
	// returns fewer than n entries if the log ends first.
	Read(ctx context.Context, workerID ids.WorkerId, idx OplogIndex, n int) ([]OplogEntry, error)

	// ReadPrefixEndingAt returns every entry from index 1 up to and
	// including idx. Used by the replay engine to reconstruct worker
	// state from scratch.
	ReadPrefixEndingAt(ctx context.Context, workerID ids.WorkerId, idx OplogIndex) ([]OplogEntry, error)

	// Delete removes a worker's entire oplog. Used when a worker is
	// explicitly deleted, or when an ephemeral worker's retention window
	// expires.
	Delete(ctx context.Context, workerID ids.WorkerId) error
}
