package shardmanager

import (
	"context"
	"fmt"

	"github.com/golem-project/golem-core/pkg/rpcproto"
)

// Server adapts a Manager to the pod-facing rpcproto.ShardManagerServer
// surface (§6): Register, GetRoutingTable, Heartbeat.
type Server struct {
	mgr *Manager
}

func NewServer(mgr *Manager) *Server {
	return &Server{mgr: mgr}
}

func (s *Server) Register(ctx context.Context, in *rpcproto.RegisterRequest) (*rpcproto.RegisterResponse, error) {
	assignment, shards, err := s.mgr.Register(ctx, in.Pod)
	if err != nil {
		return nil, fmt.Errorf("shardmanager: register: %w", err)
	}

	raw := make([]uint32, len(shards))
	for i, shard := range shards {
		raw[i] = uint32(shard)
	}
	return &rpcproto.RegisterResponse{AssignmentGeneration: assignment.Generation, AssignedShards: raw}, nil
}

func (s *Server) GetRoutingTable(ctx context.Context, in *rpcproto.GetRoutingTableRequest) (*rpcproto.GetRoutingTableResponse, error) {
	generation, table := s.mgr.RoutingTable()

	assignment := make(map[uint32]rpcproto.Pod, len(table))
	for shard, pod := range table {
		assignment[uint32(shard)] = pod
	}
	return &rpcproto.GetRoutingTableResponse{Generation: generation, Assignment: assignment}, nil
}

func (s *Server) Heartbeat(ctx context.Context, in *rpcproto.HeartbeatRequest) (*rpcproto.HeartbeatResponse, error) {
	if err := s.mgr.Heartbeat(in.Pod); err != nil {
		return nil, fmt.Errorf("shardmanager: heartbeat: %w", err)
	}
	return &rpcproto.HeartbeatResponse{}, nil
}

var _ rpcproto.ShardManagerServer = (*Server)(nil)
