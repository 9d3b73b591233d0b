package raft_test

import (
	"testing"

	"github.com/cuemby/raftcore/pkg/raft"
	"github.com/cuemby/raftcore/test/framework"
)

func TestMembership_AddAssignPromotesToVoter(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)

	newID := uint64(99)
	newNode, err := c.AddStandaloneNode(newID)
	if err != nil {
		t.Fatalf("add standalone node: %v", err)
	}
	defer newNode.Server.Close()

	if res := <-leader.Server.Add(newID, newNode.Address).Done; res.Err != nil {
		t.Fatalf("Add failed: %v", res.Err)
	}
	if res := <-leader.Server.Assign(newID, raft.Voter).Done; res.Err != nil {
		t.Fatalf("Assign(voter) failed: %v", res.Err)
	}

	if err := framework.WaitForVoters(leader, 4); err != nil {
		t.Fatalf("%v", err)
	}
}

func TestMembership_RemoveLeaderStepsDown(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	leaderID := leader.ID

	if res := <-leader.Server.Remove(leaderID).Done; res.Err != nil {
		t.Fatalf("Remove failed: %v", res.Err)
	}

	if err := framework.DefaultWaiter().WaitFor(func() bool {
		return leader.Server.Stats().Role.String() != "leader"
	}, "removed leader to step down"); err != nil {
		t.Fatalf("%v", err)
	}
}
