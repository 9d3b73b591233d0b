package raft_test

import (
	"fmt"
	"testing"

	"github.com/cuemby/raftcore/test/framework"
)

func TestReplication_AppliesInOrderAcrossAllNodes(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)

	const n = 20
	for i := 0; i < n; i++ {
		framework.AssertApplied(t, leader, []byte(fmt.Sprintf("cmd-%d", i)))
	}

	framework.AssertFSMsConverge(t, c, n)

	applied := leader.FSM.Applied()
	for i := 0; i < n; i++ {
		if string(applied[i]) != fmt.Sprintf("cmd-%d", i) {
			t.Fatalf("entry %d out of order: got %q", i, applied[i])
		}
	}
}

func TestReplication_BarrierWaitsForPriorApplies(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)

	leader.Server.Apply([][]byte{[]byte("a"), []byte("b")})
	result := <-leader.Server.Barrier().Done
	if result.Err != nil {
		t.Fatalf("barrier failed: %v", result.Err)
	}
	if len(leader.FSM.Applied()) < 2 {
		t.Fatalf("barrier returned before prior applies committed: got %d applied", len(leader.FSM.Applied()))
	}
}

func TestReplication_NonLeaderRejectsApply(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	var follower *framework.Node
	for _, n := range c.Nodes {
		if n.ID != leader.ID {
			follower = n
			break
		}
	}

	result := <-follower.Server.Apply([][]byte{[]byte("x")}).Done
	if result.Err == nil {
		t.Fatalf("expected NotLeader error from follower, got nil")
	}
}
