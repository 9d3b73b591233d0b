/*
Package raft implements the Raft consensus algorithm: a replicated,
fault-tolerant log that linearizes application commands across a small
cluster of cooperating servers.

A caller embeds Server in a process and supplies three collaborators — a
finite state machine (FSM), a storage.Backend, and a transport.Transport —
and gets back a replicated log with leader election, log replication,
membership change, snapshotting, and leadership transfer.

# Architecture

The engine is a single logical actor: Server.run is the only goroutine
that ever touches Server's role state, log, configuration, or progress
table. Everything else — disk writes, network sends, FSM apply — happens
on background goroutines that communicate results back as events on a
channel the run loop drains one at a time.

	┌──────────────────────── dispatcher (Server.run) ───────────────────────┐
	│                                                                         │
	│   tick        inbound msg      send done      log write done          │
	│     │              │                │                │                │
	│     ▼              ▼                ▼                ▼                │
	│  ┌─────────────────────────────────────────────────────────────────┐  │
	│  │                     single-threaded event loop                   │  │
	│  │   election.go   replication.go   membership.go   snapshot.go     │  │
	│  │                     (role: follower/candidate/leader)            │  │
	│  └─────────────────────────────────────────────────────────────────┘  │
	│              │                  │                    │                 │
	└──────────────┼──────────────────┼────────────────────┼─────────────────┘
	               ▼                  ▼                    ▼
	        storage.Backend   transport.Transport         FSM
	       (async, posts completion events back onto the dispatcher)

# Client API

apply, barrier, add, assign, remove, and transfer (client.go) are the only
entry points a caller needs. Each returns a *Request at once; its single
Result arrives on the request's Done channel, carrying NotLeader if the
local server is not the leader, and otherwise sent once the request
completes (commit+apply for apply/barrier, configuration commit for
membership changes, success or timeout for transfer).

# Safety

The algorithmic invariants (election safety, leader append-only, log
matching, leader completeness, state-machine safety, monotone commit,
single in-flight configuration change, and quorum computed from the
latest-in-log configuration) are the reason this package exists; this
package's tests exercise them over the in-process cluster in
test/framework.
*/
package raft
