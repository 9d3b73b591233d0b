package raft_test

import (
	"testing"

	"github.com/cuemby/raftcore/test/framework"
)

func TestElection_SingleLeaderEmerges(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	framework.AssertSingleLeader(t, c)

	if leader.Server.Stats().Term == 0 {
		t.Fatalf("leader elected with term 0")
	}
}

func TestElection_SurvivesLeaderPartition(t *testing.T) {
	c, err := framework.NewCluster(framework.ClusterConfig{NumServers: 3})
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	defer c.Shutdown()
	c.Start()

	leader := framework.AssertEventualLeader(t, c)
	oldTerm := leader.Server.Stats().Term

	for _, n := range c.Nodes {
		if n.ID != leader.ID {
			c.Partition(leader, n)
		}
	}

	newLeader, err := framework.WaitForLeader(&framework.Cluster{Nodes: nonLeaderNodes(c, leader)})
	if err != nil {
		t.Fatalf("waiting for a new leader among the majority partition: %v", err)
	}
	if newLeader.Server.Stats().Term <= oldTerm {
		t.Fatalf("new leader's term %d did not advance past old term %d", newLeader.Server.Stats().Term, oldTerm)
	}

	framework.AssertSingleLeader(t, c)
}

func nonLeaderNodes(c *framework.Cluster, leader *framework.Node) []*framework.Node {
	var out []*framework.Node
	for _, n := range c.Nodes {
		if n.ID != leader.ID {
			out = append(out, n)
		}
	}
	return out
}
