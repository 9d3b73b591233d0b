package raft

import "io"

// FSM is the caller-supplied application state machine (§1, §6). The
// engine calls Apply once per committed Command entry, strictly in
// index order and strictly serially; Snapshot/Restore are called by the
// snapshot subsystem and must not be called concurrently with Apply or
// with each other.
type FSM interface {
	// Apply applies a committed command's payload and returns an
	// application-defined result, delivered to the originating client
	// request's callback.
	Apply(payload []byte) (any, error)

	// Snapshot writes a complete point-in-time dump of the FSM's state
	// to w.
	Snapshot(w io.Writer) error

	// Restore replaces the FSM's entire state with what r contains, as
	// previously written by Snapshot.
	Restore(r io.Reader) error
}
