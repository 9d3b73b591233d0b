// Package memtransport is an in-process transport.Transport backed by a
// shared switchboard instead of real sockets, for multi-node tests that
// want several *raft.Server instances exchanging envelopes within one
// test binary.
package memtransport

import (
	"fmt"
	"sync"

	"github.com/cuemby/raftcore/pkg/transport"
	"github.com/cuemby/raftcore/pkg/wire"
)

// Switchboard is the shared registry a set of in-process Transports dial
// through. Create one per test cluster.
type Switchboard struct {
	mu    sync.RWMutex
	nodes map[string]*Transport
}

// NewSwitchboard returns an empty switchboard.
func NewSwitchboard() *Switchboard {
	return &Switchboard{nodes: make(map[string]*Transport)}
}

// Transport implements transport.Transport by posting directly into the
// target Transport's receive handler on its own goroutine, mimicking the
// asynchrony of a real network send without any actual I/O.
type Transport struct {
	board   *Switchboard
	addr    string
	partMu  sync.RWMutex
	cutOff  map[string]bool // addresses this transport refuses to reach
	mu      sync.Mutex
	recv    transport.RecvHandler
	closed  bool
}

var _ transport.Transport = (*Transport)(nil)

// New registers a new Transport at addr on board. addr must be unique
// within the switchboard.
func New(board *Switchboard, addr string) (*Transport, error) {
	board.mu.Lock()
	defer board.mu.Unlock()
	if _, exists := board.nodes[addr]; exists {
		return nil, fmt.Errorf("memtransport: address %q already registered", addr)
	}
	t := &Transport{board: board, addr: addr, cutOff: make(map[string]bool)}
	board.nodes[addr] = t
	return t, nil
}

func (t *Transport) LocalAddress() string { return t.addr }

func (t *Transport) SetRecvHandler(handler transport.RecvHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recv = handler
}

// Send looks up the peer transport and delivers env asynchronously,
// honoring any partition installed with Partition.
func (t *Transport) Send(address string, env wire.Envelope, cb transport.SendCallback) {
	t.partMu.RLock()
	cut := t.cutOff[address]
	t.partMu.RUnlock()
	if cut {
		go cb(fmt.Errorf("memtransport: %s unreachable from %s (partitioned)", address, t.addr))
		return
	}

	t.board.mu.RLock()
	peer, ok := t.board.nodes[address]
	t.board.mu.RUnlock()
	if !ok {
		go cb(fmt.Errorf("memtransport: no such address %q", address))
		return
	}

	go func() {
		peer.mu.Lock()
		handler := peer.recv
		closed := peer.closed
		peer.mu.Unlock()
		if closed || handler == nil {
			cb(fmt.Errorf("memtransport: %s not accepting", address))
			return
		}
		handler(env)
		cb(nil)
	}()
}

// Partition makes address unreachable from this transport until Heal is
// called, simulating a one-way network split for fault-injection tests.
func (t *Transport) Partition(address string) {
	t.partMu.Lock()
	defer t.partMu.Unlock()
	t.cutOff[address] = true
}

// Heal clears a prior Partition for address.
func (t *Transport) Heal(address string) {
	t.partMu.Lock()
	defer t.partMu.Unlock()
	delete(t.cutOff, address)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.board.mu.Lock()
	delete(t.board.nodes, t.addr)
	t.board.mu.Unlock()
	return nil
}
