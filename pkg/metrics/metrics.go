package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RaftLeader is 1 when this node believes itself to be the current
	// leader, 0 otherwise.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower/candidate)",
		},
	)

	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_current_term",
			Help: "Current Raft term as observed by this node",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_peers_total",
			Help: "Total number of other servers in the current configuration",
		},
	)

	RaftVoters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_voters_total",
			Help: "Total number of Voter-role servers in the current configuration",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_last_log_index",
			Help: "Index of the last log entry on this node",
		},
	)

	RaftCommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_applied_index",
			Help: "Highest log index applied to the FSM",
		},
	)

	// RaftCommitLag is CommitIndex - AppliedIndex, the backlog of
	// committed-but-not-yet-applied entries.
	RaftCommitLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftcore_commit_lag",
			Help: "Difference between commit_index and applied_index",
		},
	)

	RaftElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_elections_total",
			Help: "Total number of elections this node has started",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_apply_duration_seconds",
			Help:    "Time from an Apply call being submitted to its Result being delivered",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_commit_duration_seconds",
			Help:    "Time from a log entry being appended by the leader to it being committed",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_snapshots_total",
			Help: "Total number of snapshots this node has taken",
		},
	)

	RaftSnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftcore_snapshot_duration_seconds",
			Help:    "Time taken to take a snapshot of the FSM and persist it",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCatchUpRoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_catch_up_rounds_total",
			Help: "Total number of membership catch-up rounds run by this node as leader",
		},
	)

	RaftCatchUpFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftcore_catch_up_failures_total",
			Help: "Total number of membership promotions abandoned after exhausting catch-up rounds",
		},
	)

	RaftInstallSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftcore_install_snapshots_total",
			Help: "Total number of InstallSnapshot RPCs, by direction",
		},
		[]string{"direction"}, // "sent" or "received"
	)
)

func init() {
	prometheus.MustRegister(
		RaftLeader,
		RaftTerm,
		RaftPeers,
		RaftVoters,
		RaftLogIndex,
		RaftCommitIndex,
		RaftAppliedIndex,
		RaftCommitLag,
		RaftElectionsTotal,
		RaftApplyDuration,
		RaftCommitDuration,
		RaftSnapshotsTotal,
		RaftSnapshotDuration,
		RaftCatchUpRoundsTotal,
		RaftCatchUpFailuresTotal,
		RaftInstallSnapshotsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and recording it to a
// histogram once it completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
