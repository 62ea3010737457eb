package rpcfabric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golem-project/golem-core/pkg/hostfn"
	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/golem-project/golem-core/pkg/routing"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

// ErrInvalidShardId marks a failed dispatch to a target this executor does
// not own: dispatchOnce wraps every routing-resolve failure and every
// RemoteCaller error in it, and dispatchWithRetry answers it by refreshing
// the routing cache for the target shard before the next attempt (§4.6
// step 5).
var ErrInvalidShardId = errors.New("rpcfabric: invalid shard id")

// LocalInvoker performs an invocation against a worker resident on this
// executor, bypassing the network (§4.6 step 2, "in-process call").
type LocalInvoker interface {
	InvokeAndAwait(ctx context.Context, target ids.WorkerId, function string, params [][]byte) ([][]byte, error)
}

// RemoteCaller performs an invocation against a worker owned by another
// pod.
type RemoteCaller interface {
	InvokeAndAwait(ctx context.Context, pod rpcproto.Pod, target ids.WorkerId, function string, params [][]byte) ([][]byte, error)
}

// ShardOwnership reports whether this executor currently owns shard.
type ShardOwnership interface {
	Owns(shard ids.ShardId) bool
}

// RPCRequest is the request of a worker-to-worker call; only its hash is
// journaled, alongside the call's outcome.
type RPCRequest struct {
	Caller   ids.WorkerId
	Target   ids.WorkerId
	Function string
	Params   [][]byte
}

// RPCResult is the journaled payload for an RPC completion entry.
type RPCResult struct {
	Result [][]byte
	Failed bool
	ErrMsg string
}

// Fabric resolves and performs worker-to-worker RPCs (§4.6): in-process
// when the target shard is locally owned, otherwise over gRPC to the
// owning pod, refreshing the routing cache on an InvalidShardId response.
type Fabric struct {
	ownership   ShardOwnership
	totalShards uint32
	table       *routing.Cache
	local       LocalInvoker
	remote      RemoteCaller
	retry       oplog.RetryPolicy
}

func New(ownership ShardOwnership, totalShards uint32, table *routing.Cache, local LocalInvoker, remote RemoteCaller, retry oplog.RetryPolicy) *Fabric {
	return &Fabric{
		ownership:   ownership,
		totalShards: totalShards,
		table:       table,
		local:       local,
		remote:      remote,
		retry:       retry,
	}
}

// Invoke performs function on target on behalf of caller through the
// supplied host-function recorder: one entry holding the result or final
// error is journaled once it is known, and replay consumes that entry
// instead of re-dispatching. No entry is journaled before the call is
// sent.
func (f *Fabric) Invoke(ctx context.Context, rec hostfn.Recorder, caller, target ids.WorkerId, function string, params [][]byte) ([][]byte, error) {
	wrapper := &hostfn.Wrapper[RPCRequest, RPCResult]{
		Name:           fmt.Sprintf("rpc:%s", function),
		Classification: hostfn.Remote,
		Perform: func(ctx context.Context, req RPCRequest) (RPCResult, hostfn.ErrorClass, error) {
			result, err := f.dispatchWithRetry(ctx, req.Target, req.Function, req.Params)
			if err != nil {
				return RPCResult{Failed: true, ErrMsg: err.Error()}, hostfn.NonRetryable, err
			}
			return RPCResult{Result: result}, hostfn.Retryable, nil
		},
	}

	req := RPCRequest{Caller: caller, Target: target, Function: function, Params: params}
	resp, err := wrapper.Call(ctx, rec, req)
	if err != nil {
		return nil, err
	}
	if resp.Failed {
		return nil, errors.New(resp.ErrMsg)
	}
	return resp.Result, nil
}

func (f *Fabric) dispatchWithRetry(ctx context.Context, target ids.WorkerId, function string, params [][]byte) ([][]byte, error) {
	delay := f.retry.MinDelay
	maxAttempts := f.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := f.dispatchOnce(ctx, target, function, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, ErrInvalidShardId) && attempt == maxAttempts {
			break
		}
		if errors.Is(err, ErrInvalidShardId) {
			if refreshErr := f.table.ResolveAfterInvalidShard(ctx, ids.Shard(target, f.totalShards)); refreshErr != nil {
				log.WithComponent("rpcfabric").Warn().Err(refreshErr).Msg("routing refresh after invalid shard failed")
			}
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = scaleDelay(delay, f.retry.Multiplier, f.retry.MaxDelay)
		metrics.RPCCallsFailedTotal.WithLabelValues("retry").Inc()
	}
	return nil, fmt.Errorf("rpcfabric: %s to %s failed after %d attempts: %w", function, target, maxAttempts, lastErr)
}

func (f *Fabric) dispatchOnce(ctx context.Context, target ids.WorkerId, function string, params [][]byte) ([][]byte, error) {
	shard := ids.Shard(target, f.totalShards)
	timer := metrics.NewTimer()

	if f.ownership.Owns(shard) {
		result, err := f.local.InvokeAndAwait(ctx, target, function, params)
		timer.ObserveDurationVec(metrics.RPCCallDuration, "local")
		return result, err
	}

	pod, err := f.table.Resolve(ctx, shard)
	if err != nil {
		timer.ObserveDurationVec(metrics.RPCCallDuration, "remote")
		return nil, fmt.Errorf("%w: %v", ErrInvalidShardId, err)
	}

	result, err := f.remote.InvokeAndAwait(ctx, pod, target, function, params)
	timer.ObserveDurationVec(metrics.RPCCallDuration, "remote")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShardId, err)
	}
	return result, nil
}

func scaleDelay(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	if multiplier <= 1 {
		multiplier = 2
	}
	next := time.Duration(float64(current) * multiplier)
	if next > max {
		return max
	}
	return next
}
