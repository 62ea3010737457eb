package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golem-project/golem-core/pkg/hostfn"
	"github.com/golem-project/golem-core/pkg/oplog"
)

// replayCursor walks a worker's oplog prefix in order, handing entries to
// host-function wrappers one at a time. It also honors Revert entries: a
// Revert naming cutoff k makes every entry in (k, revert_index) inert, so
// those entries are skipped rather than replayed (see I1).
type replayCursor struct {
	entries []oplog.OplogEntry
	pos     int
	skipTo  map[int]int // position -> position to resume at, for reverts
}

func newReplayCursor(entries []oplog.OplogEntry) *replayCursor {
	c := &replayCursor{entries: entries}
	c.applyReverts()
	c.applyAtomicRegions()
	return c
}

// applyReverts pre-computes which entries are inert due to a later Revert
// entry, so peek/consume never surface them.
func (c *replayCursor) applyReverts() {
	inert := make(map[oplog.OplogIndex]bool)
	for _, e := range c.entries {
		if e.Kind == oplog.KindRevert && e.Revert != nil {
			for _, other := range c.entries {
				if other.Index > e.Revert.TargetIndex && other.Index < e.Index {
					inert[other.Index] = true
				}
			}
		}
	}
	if len(inert) == 0 {
		return
	}
	filtered := c.entries[:0:0]
	for _, e := range c.entries {
		if !inert[e.Index] {
			filtered = append(filtered, e)
		}
	}
	c.entries = filtered
}

// applyAtomicRegions truncates the cursor at the earliest BeginAtomicRegion
// entry with no matching EndAtomicRegion later in the log. Such a region
// was interrupted mid-flight (crash or eviction before the guest closed
// it); rather than replay a partial region, the cursor stops there so the
// worker reaches Live ready to run the region from its start as a fresh
// live call (§4.2 "Atomic regions").
func (c *replayCursor) applyAtomicRegions() {
	ended := make(map[string]bool)
	for _, e := range c.entries {
		if e.Kind == oplog.KindEndAtomicRegion && e.EndAtomicRegion != nil {
			ended[e.EndAtomicRegion.RegionID] = true
		}
	}
	for i, e := range c.entries {
		if e.Kind == oplog.KindBeginAtomicRegion && e.BeginAtomicRegion != nil && !ended[e.BeginAtomicRegion.RegionID] {
			c.entries = c.entries[:i]
			return
		}
	}
}

func (c *replayCursor) exhausted() bool {
	return c.pos >= len(c.entries)
}

func (c *replayCursor) peek() (oplog.OplogEntry, error) {
	if c.exhausted() {
		return oplog.OplogEntry{}, fmt.Errorf("replay cursor: exhausted")
	}
	return c.entries[c.pos], nil
}

func (c *replayCursor) consume() (oplog.OplogEntry, error) {
	entry, err := c.peek()
	if err != nil {
		return entry, err
	}
	c.pos++
	return entry, nil
}

// workerRecorder adapts an ActiveWorker to hostfn.Recorder: during replay
// it serves payloads from the cursor built in Activate; live, it appends a
// new oplog entry.
type workerRecorder struct {
	w *ActiveWorker
}

func (r *workerRecorder) Mode() hostfn.Mode {
	if r.w.Status() == StatusReplaying {
		return hostfn.ModeReplay
	}
	return hostfn.ModeLive
}

// NextReplayed decodes the current cursor entry's payload into dst, after
// verifying the entry actually belongs to this call: it must be a
// KindImportedFunctionInvoked entry carrying the same function name and
// request hash the live call is about to make (§4.2). A mismatch means
// the journaled call sequence has diverged from what the guest is doing
// now; rather than decode a response that was never produced for this
// request, it is reported as hostfn.UnexpectedOplogEntry so the caller
// can fail the worker instead of returning a wrong answer.
func (r *workerRecorder) NextReplayed(name string, reqHash []byte, dst any) error {
	entry, err := r.w.cursor.peek()
	if err != nil {
		return err
	}

	if entry.Kind == oplog.KindError && entry.Error != nil {
		_, _ = r.w.cursor.consume()
		return fmt.Errorf("worker recorder: replayed call previously failed: %s", entry.Error.Message)
	}
	if entry.Kind != oplog.KindImportedFunctionInvoked || entry.ImportedFunctionInvoked == nil {
		return &hostfn.UnexpectedOplogEntry{Wrapper: name, Reason: fmt.Sprintf("next entry is %s, want %s", entry.Kind, oplog.KindImportedFunctionInvoked)}
	}
	payload := entry.ImportedFunctionInvoked
	if payload.FunctionName != name {
		return &hostfn.UnexpectedOplogEntry{Wrapper: name, Reason: fmt.Sprintf("next entry is for %q", payload.FunctionName)}
	}
	if !bytes.Equal(payload.RequestHash, reqHash) {
		return &hostfn.UnexpectedOplogEntry{Wrapper: name, Reason: "request hash does not match the recorded call"}
	}

	if _, err := r.w.cursor.consume(); err != nil {
		return err
	}
	return json.Unmarshal(payload.ResponsePayload, dst)
}

// Record appends the outcome of a live hostfn.Wrapper call to the worker's
// oplog. A successful call is journaled as KindImportedFunctionInvoked,
// carrying both a hash (so a later replay can assert the same function
// name produced the same recorded shape) and the encoded value itself (so
// replay can reconstruct it exactly without re-running Perform). A failed
// call is journaled as KindError. Entries that are not a hostfn.Outcome
// (worker-lifecycle transitions appended directly by ActiveWorker methods)
// are passed through unchanged.
func (r *workerRecorder) Record(entry any) error {
	if oe, ok := entry.(oplog.OplogEntry); ok {
		_, err := r.w.oplogSvc.Append(context.Background(), r.w.id, oe)
		return err
	}

	outcome, ok := entry.(hostfn.Outcome)
	if !ok {
		return fmt.Errorf("worker recorder: Record expects hostfn.Outcome or oplog.OplogEntry, got %T", entry)
	}

	if outcome.Err != nil {
		oe := oplog.OplogEntry{
			Kind:      oplog.KindError,
			Timestamp: time.Now().UTC(),
			Error:     &oplog.ErrorPayload{Message: outcome.Err.Error()},
		}
		_, err := r.w.oplogSvc.Append(context.Background(), r.w.id, oe)
		return err
	}

	payload, err := json.Marshal(outcome.Value)
	if err != nil {
		return fmt.Errorf("worker recorder: encode %s outcome: %w", outcome.Name, err)
	}
	sum := sha256.Sum256(payload)

	oe := oplog.OplogEntry{
		Kind:      oplog.KindImportedFunctionInvoked,
		Timestamp: time.Now().UTC(),
		ImportedFunctionInvoked: &oplog.ImportedFunctionInvokedPayload{
			FunctionName:    outcome.Name,
			RequestHash:     outcome.ReqHash,
			ResponseHash:    sum[:],
			ResponsePayload: payload,
		},
	}
	_, err = r.w.oplogSvc.Append(context.Background(), r.w.id, oe)
	return err
}
