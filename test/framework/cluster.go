package framework

import (
	"fmt"
	"time"

	"github.com/cuemby/raftcore/pkg/clock"
	"github.com/cuemby/raftcore/pkg/config"
	"github.com/cuemby/raftcore/pkg/raft"
	"github.com/cuemby/raftcore/pkg/storage/memstore"
	"github.com/cuemby/raftcore/pkg/transport/memtransport"
	"github.com/cuemby/raftcore/pkg/wire"
)

// Node is one server in a test Cluster.
type Node struct {
	ID        uint64
	Address   string
	Server    *raft.Server
	Transport *memtransport.Transport
	FSM       *RecordingFSM
	startErr  chan error
}

// Cluster is a set of in-process raft.Server replicas wired together over
// an in-memory transport, for tests that need a real multi-node engine
// without real processes or sockets.
type Cluster struct {
	board *memtransport.Switchboard
	Nodes []*Node
}

// FastEngine returns engine timings tuned for quick test convergence
// rather than production steady-state efficiency.
func FastEngine() config.Engine {
	e := config.Default()
	e.HeartbeatInterval = 10 * time.Millisecond
	e.ElectionTimeoutMin = 50 * time.Millisecond
	e.ElectionTimeoutMax = 100 * time.Millisecond
	e.TransferTimeout = 100 * time.Millisecond
	e.SnapshotThreshold = 50
	e.SnapshotTrailing = 5
	e.CatchUpRoundsMax = 5
	return e
}

// NewCluster builds cfg.NumServers nodes and bootstraps them all with the
// same initial Voter configuration; it does not start them. Call Start to
// launch the dispatcher loops and Shutdown when done.
func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	if cfg.NumServers <= 0 {
		return nil, fmt.Errorf("framework: NumServers must be positive")
	}
	board := memtransport.NewSwitchboard()
	c := &Cluster{board: board}

	members := make([]wire.Server, cfg.NumServers)
	for i := 0; i < cfg.NumServers; i++ {
		id := uint64(i + 1)
		members[i] = wire.Server{ID: id, Address: addressFor(id), Role: wire.Voter}
	}
	initial := wire.Configuration{Servers: members}

	engine := FastEngine()
	shared := clock.NewSystemClock()

	for i := 0; i < cfg.NumServers; i++ {
		id := uint64(i + 1)
		addr := addressFor(id)

		backend := memstore.New()
		if err := backend.Bootstrap(initial); err != nil {
			return nil, fmt.Errorf("bootstrap node %d: %w", id, err)
		}

		tr, err := memtransport.New(board, addr)
		if err != nil {
			return nil, fmt.Errorf("transport for node %d: %w", id, err)
		}

		fsm := NewRecordingFSM()
		server := raft.NewServer(raft.Options{
			ID:        id,
			Address:   addr,
			Backend:   backend,
			Transport: tr,
			FSM:       fsm,
			Clock:     shared,
			Engine:    engine,
		})

		c.Nodes = append(c.Nodes, &Node{
			ID: id, Address: addr, Server: server, Transport: tr, FSM: fsm,
			startErr: make(chan error, 1),
		})
	}
	return c, nil
}

func addressFor(id uint64) string { return fmt.Sprintf("node-%d", id) }

// AddStandaloneNode builds and starts a new node on c's switchboard,
// bootstrapped with a configuration containing only itself as a Spare.
// It is not yet known to the rest of c; call Server.Add/Assign on an
// existing member to bring it into the cluster's configuration.
func (c *Cluster) AddStandaloneNode(id uint64) (*Node, error) {
	addr := addressFor(id)
	backend := memstore.New()
	if err := backend.Bootstrap(wire.Configuration{
		Servers: []wire.Server{{ID: id, Address: addr, Role: wire.Spare}},
	}); err != nil {
		return nil, fmt.Errorf("bootstrap node %d: %w", id, err)
	}
	tr, err := memtransport.New(c.board, addr)
	if err != nil {
		return nil, fmt.Errorf("transport for node %d: %w", id, err)
	}
	fsm := NewRecordingFSM()
	server := raft.NewServer(raft.Options{
		ID: id, Address: addr, Backend: backend, Transport: tr, FSM: fsm,
		Clock: clock.NewSystemClock(), Engine: FastEngine(),
	})
	n := &Node{ID: id, Address: addr, Server: server, Transport: tr, FSM: fsm, startErr: make(chan error, 1)}
	c.Nodes = append(c.Nodes, n)
	go func() { n.startErr <- n.Server.Start() }()
	return n, nil
}

// Start begins every node's dispatcher loop. Start returns once all
// loops have been launched; it does not wait for a leader to emerge.
func (c *Cluster) Start() {
	for _, n := range c.Nodes {
		n := n
		go func() { n.startErr <- n.Server.Start() }()
	}
}

// Shutdown closes every node's server.
func (c *Cluster) Shutdown() {
	for _, n := range c.Nodes {
		_ = n.Server.Close()
	}
}

// NodeByID returns the node with the given id, or nil.
func (c *Cluster) NodeByID(id uint64) *Node {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Leader returns the node that currently believes itself to be leader,
// or nil if none does (yet).
func (c *Cluster) Leader() *Node {
	for _, n := range c.Nodes {
		if n.Server.Stats().Role == raft.RoleLeader {
			return n
		}
	}
	return nil
}

// Partition cuts off bidirectional communication between a and b.
func (c *Cluster) Partition(a, b *Node) {
	a.Transport.Partition(b.Address)
	b.Transport.Partition(a.Address)
}

// Heal restores communication between a and b after a Partition.
func (c *Cluster) Heal(a, b *Node) {
	a.Transport.Heal(b.Address)
	b.Transport.Heal(a.Address)
}
