package storage

import (
	"github.com/cuemby/raftcore/pkg/wire"
)

// LoadResult is what a Backend hands back from Load at startup: the
// durable vote state, the most recent snapshot (if any), and every log
// entry on disk after that snapshot's last-included index.
type LoadResult struct {
	CurrentTerm uint64
	VotedFor    uint64 // 0 means "no vote cast"
	Snapshot    *Snapshot
	Entries     []wire.Entry
}

// Snapshot is the durable record of a compacted log prefix (§4.6).
type Snapshot struct {
	LastIndex         uint64
	LastTerm          uint64
	Configuration     wire.Configuration
	ConfigurationIndex uint64
	Payload           []byte
}

// AppendCallback, TruncateCallback, SnapshotPutCallback,
// SnapshotGetCallback, and CloseCallback report the
// outcome of an asynchronous storage operation. They are always invoked
// exactly once, on a goroutine the engine does not control, and the
// engine turns each call into an event on its own dispatcher — the
// callback itself must not touch engine state.
type AppendCallback func(err error)
type TruncateCallback func(err error)
type SnapshotPutCallback func(err error)
type SnapshotGetCallback func(snap *Snapshot, err error)
type CloseCallback func(err error)

// Backend is the engine-facing storage contract (§6). The engine issues
// one call at a time per logical resource (it never issues a second
// append before the first's callback fires) but may have an append, a
// truncate for a different range, and a snapshot put all outstanding
// concurrently against the backend.
type Backend interface {
	// Load returns the backend's durable state at startup: vote state,
	// the latest snapshot if any, and the entries on disk after it.
	Load() (LoadResult, error)

	// Bootstrap initializes a fresh backend with the given initial
	// configuration, recorded as index-1 configuration entry.
	Bootstrap(cfg wire.Configuration) error

	// Recover resets the backend's configuration without altering the
	// log — used to repair a node's view of membership out of band.
	Recover(cfg wire.Configuration) error

	// SetTerm durably persists current_term, clearing voted_for.
	SetTerm(term uint64) error

	// SetVote durably persists (current_term, voted_for) together.
	SetVote(term uint64, votedFor uint64) error

	// Append durably writes entries in order, then invokes cb exactly
	// once. Entries must be contiguous and extend the log; on failure the
	// backend's on-disk state is unchanged.
	Append(entries []wire.Entry, cb AppendCallback)

	// Truncate removes entries with index >= index (truncate-suffix) or
	// index <= index (truncate-prefix is driven by SnapshotPut instead);
	// Truncate here always means truncate-suffix, used by a Follower on
	// a log conflict.
	Truncate(index uint64, cb TruncateCallback)

	// SnapshotPut persists snap, then truncates the log up to
	// snap.LastIndex - trailing (keeping the most recent `trailing`
	// entries for fast follower catch-up), then invokes cb.
	SnapshotPut(trailing uint64, snap Snapshot, cb SnapshotPutCallback)

	// SnapshotGet retrieves the most recent snapshot, if any.
	SnapshotGet(cb SnapshotGetCallback)

	// Close releases the backend's resources, including its exclusive
	// directory lock, then invokes cb.
	Close(cb CloseCallback)
}
