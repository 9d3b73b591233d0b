package raft_test

import (
	"testing"

	"github.com/cuemby/raftcore/test/framework"
)

func TestClient_TransferHandsOffLeadership(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	oldLeaderID := leader.ID

	result := <-leader.Server.Transfer(0).Done
	if result.Err != nil {
		t.Fatalf("transfer failed: %v", result.Err)
	}

	newLeader, err := framework.WaitForLeader(c)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if newLeader.ID == oldLeaderID {
		t.Fatalf("leadership did not move off node %d", oldLeaderID)
	}
	framework.AssertSingleLeader(t, c)
}
