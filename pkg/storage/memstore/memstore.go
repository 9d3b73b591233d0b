// Package memstore is an in-memory storage.Backend: no data survives
// process exit. It exists for tests and for the rare deployment that
// chooses to trade durability for a zero-dependency backend, and it
// follows filestore's asynchronous-callback discipline exactly so a test
// built against one backend behaves the same against the other.
package memstore

import (
	"sync"

	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/wire"
)

// MemStore is a storage.Backend backed entirely by process memory.
type MemStore struct {
	mu          sync.Mutex
	currentTerm uint64
	votedFor    uint64
	entries     []wire.Entry // index 0 holds entries[0].Index == base+1
	base        uint64       // last index compacted away by a snapshot
	snapshot    *storage.Snapshot
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{}
}

var _ storage.Backend = (*MemStore)(nil)

func (m *MemStore) Load() (storage.LoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]wire.Entry, len(m.entries))
	copy(entries, m.entries)
	return storage.LoadResult{
		CurrentTerm: m.currentTerm,
		VotedFor:    m.votedFor,
		Snapshot:    m.snapshot,
		Entries:     entries,
	}, nil
}

func (m *MemStore) Bootstrap(cfg wire.Configuration) error {
	payload, err := wire.EncodeConfiguration(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = []wire.Entry{{Term: 1, Index: 1, Kind: wire.EntryConfiguration, Payload: payload}}
	return nil
}

func (m *MemStore) Recover(cfg wire.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		m.mu.Unlock()
		err := m.Bootstrap(cfg)
		m.mu.Lock()
		return err
	}
	snap := *m.snapshot
	snap.Configuration = cfg
	m.snapshot = &snap
	return nil
}

func (m *MemStore) SetTerm(term uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTerm = term
	m.votedFor = 0
	return nil
}

func (m *MemStore) SetVote(term, votedFor uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTerm = term
	m.votedFor = votedFor
	return nil
}

func (m *MemStore) Append(entries []wire.Entry, cb storage.AppendCallback) {
	go func() {
		m.mu.Lock()
		m.entries = append(m.entries, entries...)
		m.mu.Unlock()
		cb(nil)
	}()
}

func (m *MemStore) Truncate(index uint64, cb storage.TruncateCallback) {
	go func() {
		m.mu.Lock()
		kept := m.entries[:0:0]
		for _, e := range m.entries {
			if e.Index >= index {
				break
			}
			kept = append(kept, e)
		}
		m.entries = kept
		m.mu.Unlock()
		cb(nil)
	}()
}

func (m *MemStore) SnapshotPut(trailing uint64, snap storage.Snapshot, cb storage.SnapshotPutCallback) {
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		snapCopy := snap
		m.snapshot = &snapCopy
		keepFrom := snap.LastIndex
		if trailing < keepFrom {
			keepFrom -= trailing
		} else {
			keepFrom = 0
		}
		kept := m.entries[:0:0]
		for _, e := range m.entries {
			if e.Index > keepFrom {
				kept = append(kept, e)
			}
		}
		m.entries = kept
		cb(nil)
	}()
}

func (m *MemStore) SnapshotGet(cb storage.SnapshotGetCallback) {
	go func() {
		m.mu.Lock()
		snap := m.snapshot
		m.mu.Unlock()
		cb(snap, nil)
	}()
}

func (m *MemStore) Close(cb storage.CloseCallback) {
	go cb(nil)
}
