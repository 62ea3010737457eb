package shardmanager

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

// PodControlDialer opens a PodControlClient to a registered pod so the
// manager can push AssignShardIds/RevokeShardIds notifications (§4.5).
type PodControlDialer interface {
	Dial(ctx context.Context, pod rpcproto.Pod) (rpcproto.PodControlClient, error)
}

// Config configures a single Shard Manager node.
type Config struct {
	NodeID          string
	BindAddr        string
	DataDir         string
	TotalShardCount uint32
	// HeartbeatTimeout is how long a pod may go without a Heartbeat call
	// before it is considered failed and its shards redistributed.
	HeartbeatTimeout time.Duration
}

type podRecord struct {
	pod           rpcproto.Pod
	id            ids.PodId
	lastHeartbeat time.Time
}

// Manager is the Shard Manager: pod registry, heartbeat-based failure
// detection, and Raft-consensus shard assignment (§4.5). Bootstrap starts
// a single-node Raft cluster; this package has no path for adding further
// voters.
type Manager struct {
	cfg Config
	fsm *FSM
	raft *raft.Raft

	mu   sync.Mutex
	pods map[ids.PodId]*podRecord

	dialer PodControlDialer
}

func NewManager(cfg Config, dialer PodControlDialer) (*Manager, error) {
	if cfg.TotalShardCount == 0 {
		return nil, fmt.Errorf("shardmanager: TotalShardCount must be > 0")
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("shardmanager: create data dir: %w", err)
	}

	return &Manager{
		cfg:    cfg,
		fsm:    newFSM(cfg.TotalShardCount),
		pods:   make(map[ids.PodId]*podRecord),
		dialer: dialer,
	}, nil
}

// Bootstrap starts a single-node Raft cluster backed by BoltDB log/stable
// stores and a file-based snapshot store, mirroring the teacher's
// Bootstrap sequence with the same faster-than-default timeouts tuned for
// LAN deployments.
func (m *Manager) Bootstrap() error {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.cfg.NodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", m.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("shardmanager: resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("shardmanager: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("shardmanager: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("shardmanager: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("shardmanager: create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("shardmanager: create raft: %w", err)
	}
	m.raft = r

	future := m.raft.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return fmt.Errorf("shardmanager: bootstrap cluster: %w", err)
	}

	metrics.RaftPeers.Set(1)
	return nil
}

func (m *Manager) IsLeader() bool {
	return m.raft != nil && m.raft.State() == raft.Leader
}

// Register admits a pod into the registry and triggers a rebalance.
func (m *Manager) Register(ctx context.Context, pod rpcproto.Pod) (Assignment, []ids.ShardId, error) {
	podID, err := ids.ParsePodId(pod.PodID)
	if err != nil {
		return Assignment{}, nil, fmt.Errorf("shardmanager: invalid pod id %q: %w", pod.PodID, err)
	}

	m.mu.Lock()
	m.pods[podID] = &podRecord{pod: pod, id: podID, lastHeartbeat: time.Now()}
	metrics.PodsRegisteredTotal.Set(float64(len(m.pods)))
	m.mu.Unlock()

	assignment, err := m.Rebalance(ctx)
	if err != nil {
		return Assignment{}, nil, err
	}
	return assignment, assignment.shardsOf(podID), nil
}

// Heartbeat records liveness for pod; it does not itself trigger rebalance.
// Pods past the heartbeat timeout are dropped only when
// DetectFailuresAndRebalance runs.
func (m *Manager) Heartbeat(pod rpcproto.Pod) error {
	podID, err := ids.ParsePodId(pod.PodID)
	if err != nil {
		return fmt.Errorf("shardmanager: invalid pod id %q: %w", pod.PodID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.pods[podID]
	if !ok {
		return fmt.Errorf("shardmanager: heartbeat from unregistered pod %s", pod.PodID)
	}
	rec.lastHeartbeat = time.Now()
	return nil
}

func (m *Manager) healthyPods() []ids.PodId {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.HeartbeatTimeout)
	var healthy []ids.PodId
	for id, rec := range m.pods {
		if rec.lastHeartbeat.After(cutoff) {
			healthy = append(healthy, id)
		}
	}
	return healthy
}

// DetectFailuresAndRebalance drops pods past the heartbeat timeout from
// the registry and rebalances. Nothing in this module calls it on a timer;
// otherwise a stale pod loses its shards only when a later Rebalance (such
// as the one Register triggers) leaves it out of the healthy set.
func (m *Manager) DetectFailuresAndRebalance(ctx context.Context) (Assignment, error) {
	cutoff := time.Now().Add(-m.cfg.HeartbeatTimeout)

	m.mu.Lock()
	for id, rec := range m.pods {
		if rec.lastHeartbeat.Before(cutoff) {
			delete(m.pods, id)
			log.WithComponent("shardmanager").Warn().Str("pod_id", id.String()).Msg("pod heartbeat timeout, evicting")
		}
	}
	metrics.PodsRegisteredTotal.Set(float64(len(m.pods)))
	m.mu.Unlock()

	return m.Rebalance(ctx)
}

// Rebalance recomputes shard ownership over the currently healthy pod
// set, persists the result through Raft before announcing it (§4.5
// "Persistence"), and pushes AssignShardIds/RevokeShardIds to affected
// pods.
func (m *Manager) Rebalance(ctx context.Context) (Assignment, error) {
	if !m.IsLeader() {
		return Assignment{}, fmt.Errorf("shardmanager: rebalance requires leadership")
	}

	current := m.fsm.current()
	healthy := m.healthyPods()
	next, assigned, revoked := rebalance(current, healthy)

	if next.Generation == current.Generation {
		return current, nil
	}

	payload, err := encodeSetAssignment(next)
	if err != nil {
		return Assignment{}, err
	}

	timer := metrics.NewTimer()
	future := m.raft.Apply(payload, 5*time.Second)
	timer.ObserveDuration(metrics.RaftApplyDuration)
	if err := future.Error(); err != nil {
		return Assignment{}, fmt.Errorf("shardmanager: raft apply: %w", err)
	}

	metrics.ShardAssignmentGeneration.Set(float64(next.Generation))
	metrics.ShardReassignmentsTotal.Inc()

	m.announce(ctx, next.Generation, assigned, revoked)
	return next, nil
}

func (m *Manager) announce(ctx context.Context, generation uint64, assigned, revoked map[ids.PodId][]ids.ShardId) {
	m.mu.Lock()
	pods := make(map[ids.PodId]rpcproto.Pod, len(m.pods))
	for id, rec := range m.pods {
		pods[id] = rec.pod
	}
	m.mu.Unlock()

	for podID, shards := range assigned {
		m.push(ctx, pods, podID, generation, shards, true)
	}
	for podID, shards := range revoked {
		m.push(ctx, pods, podID, generation, shards, false)
	}
}

func (m *Manager) push(ctx context.Context, pods map[ids.PodId]rpcproto.Pod, podID ids.PodId, generation uint64, shards []ids.ShardId, assign bool) {
	pod, ok := pods[podID]
	if !ok || m.dialer == nil {
		return
	}
	client, err := m.dialer.Dial(ctx, pod)
	if err != nil {
		log.WithComponent("shardmanager").Error().Err(err).Str("pod_id", podID.String()).Msg("dial pod for shard push failed")
		return
	}

	raw := make([]uint32, len(shards))
	for i, s := range shards {
		raw[i] = uint32(s)
	}

	if assign {
		_, err = client.AssignShardIds(ctx, &rpcproto.AssignShardIdsRequest{Generation: generation, Shards: raw})
	} else {
		_, err = client.RevokeShardIds(ctx, &rpcproto.RevokeShardIdsRequest{Generation: generation, Shards: raw})
	}
	if err != nil {
		log.WithComponent("shardmanager").Error().Err(err).Str("pod_id", podID.String()).Bool("assign", assign).Msg("shard push rpc failed")
	}
}

// RoutingTable returns the current assignment translated into routing
// pods, for GetRoutingTable responses.
func (m *Manager) RoutingTable() (uint64, map[ids.ShardId]rpcproto.Pod) {
	assignment := m.fsm.current()

	m.mu.Lock()
	pods := make(map[ids.PodId]rpcproto.Pod, len(m.pods))
	for id, rec := range m.pods {
		pods[id] = rec.pod
	}
	m.mu.Unlock()

	table := make(map[ids.ShardId]rpcproto.Pod, len(assignment.ShardOwner))
	for shard, owner := range assignment.ShardOwner {
		if pod, ok := pods[owner]; ok {
			table[shard] = pod
		}
	}
	return assignment.Generation, table
}

// Shutdown releases the Raft instance.
func (m *Manager) Shutdown() error {
	if m.raft == nil {
		return nil
	}
	return m.raft.Shutdown().Error()
}
