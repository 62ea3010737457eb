package executor

import (
	"context"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

// PodControlServer adapts an Executor to rpcproto.PodControlServer, the
// narrow surface the Shard Manager uses to push shard ownership changes
// (§4.5). Kept as a separate type from Server; cmd/golem-executor
// registers both on the same gRPC listener.
type PodControlServer struct {
	exec *Executor
}

// NewPodControlServer wraps exec as a gRPC PodControlServer.
func NewPodControlServer(exec *Executor) *PodControlServer {
	return &PodControlServer{exec: exec}
}

func toShardIds(raw []uint32) []ids.ShardId {
	out := make([]ids.ShardId, len(raw))
	for i, s := range raw {
		out[i] = ids.ShardId(s)
	}
	return out
}

func (s *PodControlServer) AssignShardIds(ctx context.Context, req *rpcproto.AssignShardIdsRequest) (*rpcproto.AssignShardIdsResponse, error) {
	s.exec.AssignShardIds(req.Generation, toShardIds(req.Shards))
	return &rpcproto.AssignShardIdsResponse{}, nil
}

func (s *PodControlServer) RevokeShardIds(ctx context.Context, req *rpcproto.RevokeShardIdsRequest) (*rpcproto.RevokeShardIdsResponse, error) {
	s.exec.RevokeShardIds(ctx, req.Generation, toShardIds(req.Shards))
	return &rpcproto.RevokeShardIdsResponse{}, nil
}
