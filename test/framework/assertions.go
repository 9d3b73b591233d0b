package framework

// AssertEventualLeader fails the test if no node in c becomes leader
// within the default wait window, and returns that leader otherwise.
func AssertEventualLeader(t TestingT, c *Cluster) *Node {
	t.Helper()
	leader, err := WaitForLeader(c)
	if err != nil {
		t.Fatalf("%v", err)
		return nil
	}
	return leader
}

// AssertSingleLeader fails the test if more than one node in c believes
// itself leader at the same term, which would violate election safety.
func AssertSingleLeader(t TestingT, c *Cluster) {
	t.Helper()
	var leaders []*Node
	for _, n := range c.Nodes {
		if n.Server.Stats().Role.String() == "leader" {
			leaders = append(leaders, n)
		}
	}
	if len(leaders) > 1 {
		terms := make(map[uint64]int)
		for _, n := range leaders {
			terms[n.Server.Stats().Term]++
		}
		for term, count := range terms {
			if count > 1 {
				t.Fatalf("election safety violated: %d leaders at term %d", count, term)
			}
		}
	}
}

// AssertApplied applies payload via leader and fails the test if it does
// not commit successfully.
func AssertApplied(t TestingT, leader *Node, payload []byte) {
	t.Helper()
	result := <-leader.Server.Apply([][]byte{payload}).Done
	if result.Err != nil {
		t.Fatalf("apply failed: %v", result.Err)
	}
}

// AssertFSMsConverge fails the test if any two nodes' RecordingFSMs
// disagree once they have all applied wantApplied entries.
func AssertFSMsConverge(t TestingT, c *Cluster, wantApplied int) {
	t.Helper()
	for _, n := range c.Nodes {
		if err := WaitForApplied(n, wantApplied); err != nil {
			t.Fatalf("node %d: %v", n.ID, err)
		}
	}
	first := c.Nodes[0]
	for _, n := range c.Nodes[1:] {
		if !first.FSM.Equal(n.FSM) {
			t.Fatalf("state machine divergence: node %d and node %d disagree", first.ID, n.ID)
		}
	}
}
