package metrics

import (
	"time"

	"github.com/cuemby/raftcore/pkg/raft"
)

// Collector periodically samples a raft.Server's Stats into the package
// gauges on a ticker, independent of any particular HTTP or RPC path.
type Collector struct {
	server *raft.Server
	stopCh chan struct{}
}

// NewCollector builds a Collector for server. Call Start to begin
// sampling on a ticker.
func NewCollector(server *raft.Server) *Collector {
	return &Collector{
		server: server,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 5 seconds, in a background
// goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	st := c.server.Stats()

	if st.Role == raft.RoleLeader {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	RaftTerm.Set(float64(st.Term))
	RaftPeers.Set(float64(st.NumPeers))
	RaftVoters.Set(float64(st.NumVoters))
	RaftLogIndex.Set(float64(st.LastLogIndex))
	RaftCommitIndex.Set(float64(st.CommitIndex))
	RaftAppliedIndex.Set(float64(st.AppliedIndex))
	RaftCommitLag.Set(float64(st.CommitIndex - st.AppliedIndex))
}
