package raft_test

import (
	"fmt"
	"testing"

	"github.com/cuemby/raftcore/test/framework"
)

// TestSnapshot_LaggingFollowerCatchesUpViaInstall drives enough applies
// past the (deliberately low, see FastEngine) snapshot threshold that the
// leader compacts its log, then partitions a follower long enough that
// its NextIndex falls into the compacted prefix, forcing an
// InstallSnapshot rather than ordinary replication once healed.
func TestSnapshot_LaggingFollowerCatchesUpViaInstall(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	var lagger *framework.Node
	for _, n := range c.Nodes {
		if n.ID != leader.ID {
			lagger = n
			break
		}
	}

	c.Partition(leader, lagger)

	const n = 200
	for i := 0; i < n; i++ {
		framework.AssertApplied(t, leader, []byte(fmt.Sprintf("cmd-%d", i)))
	}

	if err := framework.WaitForApplied(leader, n); err != nil {
		t.Fatalf("leader did not apply its own entries: %v", err)
	}

	c.Heal(leader, lagger)

	if err := framework.WaitForApplied(lagger, n); err != nil {
		t.Fatalf("lagging follower never caught up after heal: %v", err)
	}

	framework.AssertFSMsConverge(t, c, n)
}
