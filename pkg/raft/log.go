package raft

import (
	"github.com/cuemby/raftcore/pkg/storage"
)

// Log is the engine's in-memory view of the replicated log, backed by a
// storage.Backend for durability (§4.1). All mutation happens on the
// dispatcher goroutine; durability completions arrive as events and are
// folded back in by the caller, not by Log itself.
type Log struct {
	backend storage.Backend

	// entries holds every entry after snapshotLastIndex, in index
	// order and with no gaps: entries[k].Index == snapshotLastIndex+1+k.
	entries []Entry

	snapshotLastIndex uint64
	snapshotLastTerm  uint64
}

// NewLog wraps backend with an empty in-memory cache; callers must prime
// it with Reset after calling backend.Load.
func NewLog(backend storage.Backend) *Log {
	return &Log{backend: backend}
}

// Reset replaces the in-memory cache wholesale, used once at startup
// after storage.Backend.Load returns the on-disk snapshot and entries.
func (l *Log) Reset(snapshotLastIndex, snapshotLastTerm uint64, entries []Entry) {
	l.snapshotLastIndex = snapshotLastIndex
	l.snapshotLastTerm = snapshotLastTerm
	l.entries = entries
}

// LastIndex returns the index of the last entry, or the snapshot's
// last-included index if the log is empty since the snapshot.
func (l *Log) LastIndex() uint64 {
	if n := len(l.entries); n > 0 {
		return l.entries[n-1].Index
	}
	return l.snapshotLastIndex
}

// LastTerm returns the term of the last entry, or the snapshot's
// last-included term if the log is empty since the snapshot.
func (l *Log) LastTerm() uint64 {
	if n := len(l.entries); n > 0 {
		return l.entries[n-1].Term
	}
	return l.snapshotLastTerm
}

// SnapshotLast returns the (index, term) of the compacted prefix.
func (l *Log) SnapshotLast() (index, term uint64) {
	return l.snapshotLastIndex, l.snapshotLastTerm
}

// TermAt returns the term of the entry at i, or CompactedRange if i falls
// in the compacted prefix (except exactly at the snapshot boundary,
// which is known).
func (l *Log) TermAt(i uint64) (uint64, error) {
	if i == 0 {
		return 0, nil
	}
	if i == l.snapshotLastIndex {
		return l.snapshotLastTerm, nil
	}
	if i < l.snapshotLastIndex {
		return 0, errCompacted
	}
	idx := i - l.snapshotLastIndex - 1
	if idx >= uint64(len(l.entries)) {
		return 0, NewError(CodeNotFound, "index beyond last log entry", "index", i)
	}
	return l.entries[idx].Term, nil
}

// Get returns the entry at index i.
func (l *Log) Get(i uint64) (Entry, error) {
	if i <= l.snapshotLastIndex {
		return Entry{}, errCompacted
	}
	idx := i - l.snapshotLastIndex - 1
	if idx >= uint64(len(l.entries)) {
		return Entry{}, NewError(CodeNotFound, "index beyond last log entry", "index", i)
	}
	return l.entries[idx], nil
}

// Append extends the in-memory log with entries, which must be
// contiguous and immediately follow LastIndex(). It does not itself wait
// for durability; callers issue the matching storage.Backend.Append and
// fold its completion in separately (§5 ordering guarantees).
func (l *Log) Append(entries []Entry) {
	l.entries = append(l.entries, entries...)
}

// TruncateSuffix discards every entry with index >= from. Per §4.1 this
// is only ever used by a Follower reacting to a log conflict, and the
// caller is responsible for enforcing from > commit_index before calling.
func (l *Log) TruncateSuffix(from uint64) {
	if from <= l.snapshotLastIndex {
		l.entries = nil
		return
	}
	idx := from - l.snapshotLastIndex - 1
	if idx >= uint64(len(l.entries)) {
		return
	}
	l.entries = l.entries[:idx]
}

// TruncatePrefix discards every entry with index <= upto and advances
// the snapshot boundary, used only after a snapshot is taken or
// installed. upto must never regress snapshotLastIndex.
func (l *Log) TruncatePrefix(upto, uptoTerm uint64) {
	if upto <= l.snapshotLastIndex {
		return
	}
	idx := upto - l.snapshotLastIndex - 1
	if idx < uint64(len(l.entries)) {
		l.entries = append([]Entry(nil), l.entries[idx+1:]...)
	} else {
		l.entries = nil
	}
	l.snapshotLastIndex = upto
	l.snapshotLastTerm = uptoTerm
}

// Slice returns entries starting at from, bounded by maxBytes of
// payload, plus whether more entries remain beyond what was returned.
func (l *Log) Slice(from uint64, maxBytes int) ([]Entry, bool) {
	if from <= l.snapshotLastIndex {
		return nil, len(l.entries) > 0
	}
	start := from - l.snapshotLastIndex - 1
	if start >= uint64(len(l.entries)) {
		return nil, false
	}
	out := make([]Entry, 0, len(l.entries)-int(start))
	used := 0
	i := start
	for ; i < uint64(len(l.entries)); i++ {
		e := l.entries[i]
		if used > 0 && used+len(e.Payload) > maxBytes {
			break
		}
		out = append(out, e)
		used += len(e.Payload)
	}
	return out, i < uint64(len(l.entries))
}

// Backend exposes the underlying storage.Backend for components (the
// dispatcher, snapshot subsystem) that issue durable writes directly.
func (l *Log) Backend() storage.Backend { return l.backend }
