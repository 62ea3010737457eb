package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Oplog metrics
	OplogAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golem_oplog_append_duration_seconds",
			Help:    "Time taken to append entries to a worker's oplog",
			Buckets: prometheus.DefBuckets,
		},
	)

	OplogEntriesAppendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "golem_oplog_entries_appended_total",
			Help: "Total number of oplog entries appended across all workers",
		},
	)

	OplogReadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golem_oplog_read_duration_seconds",
			Help:    "Time taken to read a range of oplog entries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Active worker registry / memory governor metrics
	ActiveWorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_active_workers_total",
			Help: "Number of workers currently resident on this executor",
		},
	)

	WorkerEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golem_worker_evictions_total",
			Help: "Total number of active workers evicted, by reason",
		},
		[]string{"reason"},
	)

	MemoryGovernorPressureBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_memory_governor_estimated_bytes",
			Help: "Estimated memory in use by resident active workers",
		},
	)

	WorkerActivationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golem_worker_activation_duration_seconds",
			Help:    "Time taken to activate a worker, including replay",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Shard manager / routing metrics
	ShardAssignmentGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_shard_assignment_generation",
			Help: "Current shard assignment generation",
		},
	)

	ShardReassignmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "golem_shard_reassignments_total",
			Help: "Total number of shard ownership changes across all rebalances",
		},
	)

	PodsRegisteredTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_pods_registered_total",
			Help: "Number of pods currently registered with the shard manager",
		},
	)

	RoutingTableRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "golem_routing_table_refreshes_total",
			Help: "Total number of routing table refreshes performed by clients",
		},
	)

	// RPC fabric metrics
	RPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golem_rpc_call_duration_seconds",
			Help:    "Worker-to-worker RPC call duration by path (local or remote)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RPCCallsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golem_rpc_calls_failed_total",
			Help: "Total number of worker-to-worker RPC calls that failed",
		},
		[]string{"reason"},
	)

	// Scheduler metrics
	SchedulerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_scheduler_queue_depth",
			Help: "Number of pending entries in the per-executor scheduler queue",
		},
	)

	ScheduledFiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "golem_scheduler_fires_total",
			Help: "Total number of scheduled entries that have fired",
		},
	)

	// Promise metrics
	PromisesPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_promises_pending",
			Help: "Number of promises awaiting completion",
		},
	)

	PromiseCompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golem_promise_completion_duration_seconds",
			Help:    "Time between promise creation and completion",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Raft metrics (shard manager consensus)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_shardmanager_raft_is_leader",
			Help: "Whether this shard manager node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golem_shardmanager_raft_peers_total",
			Help: "Total number of Raft peers in the shard manager cluster",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "golem_shardmanager_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in the shard manager",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Executor gRPC API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golem_api_requests_total",
			Help: "Total number of executor API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golem_api_request_duration_seconds",
			Help:    "Executor API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		OplogAppendDuration,
		OplogEntriesAppendedTotal,
		OplogReadDuration,
		ActiveWorkersTotal,
		WorkerEvictionsTotal,
		MemoryGovernorPressureBytes,
		WorkerActivationDuration,
		ShardAssignmentGeneration,
		ShardReassignmentsTotal,
		PodsRegisteredTotal,
		RoutingTableRefreshesTotal,
		RPCCallDuration,
		RPCCallsFailedTotal,
		SchedulerQueueDepth,
		ScheduledFiresTotal,
		PromisesPending,
		PromiseCompletionDuration,
		RaftLeader,
		RaftPeers,
		RaftApplyDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
