package filestore

import (
	"time"

	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/wire"
)

var _ storage.Backend = (*FileStore)(nil)

// Load returns the durable state found at Open: vote state, the most
// recent snapshot if any, and every entry on disk after it.
func (fs *FileStore) Load() (storage.LoadResult, error) {
	entries, err := fs.loadEntries()
	if err != nil {
		return storage.LoadResult{}, err
	}

	fs.mu.Lock()
	term, votedFor := fs.currentTerm, fs.votedFor
	last := fs.snapLast
	fs.mu.Unlock()

	snap, err := readSnapshot(last)
	if err != nil {
		return storage.LoadResult{}, err
	}

	return storage.LoadResult{
		CurrentTerm: term,
		VotedFor:    votedFor,
		Snapshot:    snap,
		Entries:     entries,
	}, nil
}

// Bootstrap writes cfg as the index-1 configuration entry of a brand new
// log. It must only be called on a FileStore whose Load returned no
// entries and no snapshot.
func (fs *FileStore) Bootstrap(cfg wire.Configuration) error {
	payload, err := wire.EncodeConfiguration(cfg)
	if err != nil {
		return err
	}
	entry := wire.Entry{Term: 1, Index: 1, Kind: wire.EntryConfiguration, Payload: payload}
	return fs.appendEntries([]wire.Entry{entry})
}

// Recover overwrites the current configuration without touching the log,
// used to repair a node's membership view out of band (e.g. after
// restoring a data directory from a backup taken off a different
// cluster).
func (fs *FileStore) Recover(cfg wire.Configuration) error {
	fs.mu.Lock()
	last := fs.snapLast
	fs.mu.Unlock()
	if last == nil {
		return fs.Bootstrap(cfg)
	}
	snap, err := readSnapshot(last)
	if err != nil {
		return err
	}
	snap.Configuration = cfg
	return fs.writeSnapshotFiles(*snap, uint64(time.Now().UnixNano()))
}

func (fs *FileStore) SetTerm(term uint64) error {
	return fs.writeMetadata(term, 0)
}

func (fs *FileStore) SetVote(term uint64, votedFor uint64) error {
	return fs.writeMetadata(term, votedFor)
}

func (fs *FileStore) Append(entries []wire.Entry, cb storage.AppendCallback) {
	go func() {
		cb(fs.appendEntries(entries))
	}()
}

func (fs *FileStore) Truncate(index uint64, cb storage.TruncateCallback) {
	go func() {
		cb(fs.truncateSuffix(index))
	}()
}

func (fs *FileStore) SnapshotPut(trailing uint64, snap storage.Snapshot, cb storage.SnapshotPutCallback) {
	go func() {
		if err := fs.writeSnapshotFiles(snap, uint64(time.Now().UnixNano())); err != nil {
			cb(err)
			return
		}
		keepFrom := snap.LastIndex
		if trailing < keepFrom {
			keepFrom -= trailing
		} else {
			keepFrom = 0
		}
		cb(fs.truncatePrefix(keepFrom))
	}()
}

func (fs *FileStore) SnapshotGet(cb storage.SnapshotGetCallback) {
	go func() {
		fs.mu.Lock()
		last := fs.snapLast
		fs.mu.Unlock()
		snap, err := readSnapshot(last)
		cb(snap, err)
	}()
}

func (fs *FileStore) Close(cb storage.CloseCallback) {
	go func() {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		err := fs.open.file.Close()
		fs.unlock()
		cb(err)
	}()
}
