// Package framework is an in-process multi-node test harness for
// pkg/raft: it wires together real *raft.Server instances over
// pkg/transport/memtransport and pkg/storage/memstore, so package tests
// can exercise elections, replication, membership changes, and snapshots
// without touching disk or real sockets.
package framework

import "time"

// TestingT is the subset of *testing.T the framework needs, so helpers
// here can be used from table-driven subtests without importing
// "testing" into non-test files.
type TestingT interface {
	Helper()
	Logf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	FailNow()
}

// ClusterConfig configures a test Cluster.
type ClusterConfig struct {
	// NumServers is the number of voting servers to bootstrap with.
	NumServers int
	// Tick is not read by NewCluster: every node runs with FastEngine()
	// timings.
	Tick time.Duration
}
