package framework

import (
	"fmt"
	"time"
)

// Waiter polls a condition at a fixed interval until it is true or a
// timeout elapses.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a Waiter with the given timeout and polling interval.
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{timeout: timeout, interval: interval}
}

// DefaultWaiter returns a waiter tuned for FastEngine timings.
func DefaultWaiter() *Waiter {
	return NewWaiter(2*time.Second, 5*time.Millisecond)
}

// WaitFor blocks until condition returns true or the timeout elapses.
func (w *Waiter) WaitFor(condition func() bool, description string) error {
	deadline := time.Now().Add(w.timeout)
	if condition() {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for range ticker.C {
		if condition() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for: %s (timeout %v)", description, w.timeout)
		}
	}
	return nil
}

// WaitForLeader waits for some node in c to report itself leader and
// returns the first such node found.
func WaitForLeader(c *Cluster) (*Node, error) {
	var leader *Node
	err := DefaultWaiter().WaitFor(func() bool {
		leader = c.Leader()
		return leader != nil
	}, "a leader to emerge")
	return leader, err
}

// WaitForCommitIndex waits for node's commit index to reach at least idx.
func WaitForCommitIndex(node *Node, idx uint64) error {
	return DefaultWaiter().WaitFor(func() bool {
		return node.Server.Stats().CommitIndex >= idx
	}, fmt.Sprintf("node %d commit index >= %d", node.ID, idx))
}

// WaitForApplied waits for node's FSM to have applied at least n entries.
func WaitForApplied(node *Node, n int) error {
	return DefaultWaiter().WaitFor(func() bool {
		return len(node.FSM.Applied()) >= n
	}, fmt.Sprintf("node %d to apply %d entries", node.ID, n))
}

// WaitForVoters waits for node's configuration to report exactly n
// voters, used after membership changes.
func WaitForVoters(node *Node, n int) error {
	return DefaultWaiter().WaitFor(func() bool {
		return node.Server.Stats().NumVoters == n
	}, fmt.Sprintf("node %d to see %d voters", node.ID, n))
}
