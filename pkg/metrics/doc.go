/*
Package metrics provides Prometheus metrics collection and exposition for
a raftcore node.

The metrics package defines and registers all raftcore metrics using the
Prometheus client library, giving operators visibility into leadership
status, log progress, and the latency of the operations client code cares
about (Apply, commit, snapshot). Metrics are exposed via an HTTP endpoint
for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (term, log index)    │          │
	│  │  Counter: Monotonic increases (elections)   │          │
	│  │  Histogram: Distributions (apply latency)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Leadership: is_leader, term, elections     │          │
	│  │  Log: last_log_index, commit/applied index  │          │
	│  │  Membership: peers_total, voters_total      │          │
	│  │  Snapshot: snapshots_total, duration        │          │
	│  │  Catch-up: rounds_total, failures_total     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics periodically            │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Collector (collector.go) polls a *raft.Server's Stats() on an interval and
writes the results into the package-level gauges below. It is the only
piece of this package that touches the engine directly; everything else
is plain Prometheus client boilerplate. Only those gauges are updated:
the counters and histograms listed below are registered and exported,
but nothing in this module increments or observes them.

health.go exposes /health, /ready, and /live HTTP handlers backed by a
small component registry (RegisterComponent), independent of Raft
metrics, so a process can report liveness/readiness before a Raft server
has even started.

# Metrics Reference

Leadership:

	raftcore_is_leader
	  Type: Gauge
	  Description: 1 if this node believes itself the current leader, else 0.

	raftcore_current_term
	  Type: Gauge
	  Description: Current Raft term as observed by this node.

	raftcore_elections_total
	  Type: Counter
	  Description: Total number of elections this node has started.

Log and replication:

	raftcore_last_log_index
	raftcore_commit_index
	raftcore_applied_index
	raftcore_commit_lag
	  Type: Gauge
	  Description: Log position and the backlog between commit and apply.

	raftcore_apply_duration_seconds
	raftcore_commit_duration_seconds
	  Type: Histogram
	  Description: Client Apply latency and append-to-commit latency.

Membership:

	raftcore_peers_total
	raftcore_voters_total
	  Type: Gauge
	  Description: Size of the current configuration, and its Voter subset.

	raftcore_catch_up_rounds_total
	raftcore_catch_up_failures_total
	  Type: Counter
	  Description: Membership catch-up rounds run, and promotions abandoned
	  after CatchUpRoundsMax was exhausted.

Snapshot:

	raftcore_snapshots_total
	  Type: Counter
	  Description: Total number of snapshots this node has taken.

	raftcore_snapshot_duration_seconds
	  Type: Histogram
	  Description: Time taken to snapshot the FSM and persist it.

	raftcore_install_snapshots_total{direction="sent|received"}
	  Type: CounterVec
	  Description: InstallSnapshot RPCs by direction.

# Usage

	import "github.com/cuemby/raftcore/pkg/metrics"

	collector := metrics.NewCollector(server)
	collector.Start()
	defer collector.Stop()

	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())

# Suggested Queries

  - Has leader: max(raftcore_is_leader) > 0
  - Leader changes: changes(raftcore_is_leader[10m])
  - Log lag: raftcore_commit_index - raftcore_applied_index
  - p95 apply latency: histogram_quantile(0.95, rate(raftcore_apply_duration_seconds_bucket[5m]))
  - Catch-up failure rate: rate(raftcore_catch_up_failures_total[10m])

# Suggested Alerts

  - No leader: max(raftcore_is_leader) == 0 for 1m
  - Leader flapping: changes(raftcore_is_leader[10m]) > 3
  - Growing commit lag: raftcore_commit_lag > 1000
  - Slow applies: histogram_quantile(0.95, rate(raftcore_apply_duration_seconds_bucket[5m])) > 1
*/
package metrics
