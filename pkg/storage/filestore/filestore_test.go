package filestore_test

import (
	"bytes"
	"testing"

	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/storage/filestore"
	"github.com/cuemby/raftcore/pkg/wire"
)

func testConfiguration() wire.Configuration {
	return wire.Configuration{Servers: []wire.Server{
		{ID: 1, Address: "node-1", Role: wire.Voter},
		{ID: 2, Address: "node-2", Role: wire.Voter},
		{ID: 3, Address: "node-3", Role: wire.Voter},
	}}
}

func mustAppend(t *testing.T, fs *filestore.FileStore, entries []wire.Entry) {
	t.Helper()
	done := make(chan error, 1)
	fs.Append(entries, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFileStore_BootstrapAndReload(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := fs.Bootstrap(testConfiguration()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := fs.SetVote(3, 1); err != nil {
		t.Fatalf("set vote: %v", err)
	}

	entries := []wire.Entry{
		{Term: 3, Index: 2, Kind: wire.EntryCommand, Payload: []byte("a")},
		{Term: 3, Index: 3, Kind: wire.EntryCommand, Payload: []byte("b")},
	}
	mustAppend(t, fs, entries)

	closeDone := make(chan error, 1)
	fs.Close(func(err error) { closeDone <- err })
	if err := <-closeDone; err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := filestore.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, err := reopened.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CurrentTerm != 3 || loaded.VotedFor != 1 {
		t.Fatalf("vote state not durable: got term=%d voted=%d", loaded.CurrentTerm, loaded.VotedFor)
	}
	if len(loaded.Entries) != 3 { // bootstrap entry + 2 appended
		t.Fatalf("expected 3 entries after reload, got %d", len(loaded.Entries))
	}
	if !bytes.Equal(loaded.Entries[2].Payload, []byte("b")) {
		t.Fatalf("entry payload not preserved across reload")
	}
}

func TestFileStore_TruncateSuffixDropsConflictingEntries(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.Bootstrap(testConfiguration()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	mustAppend(t, fs, []wire.Entry{
		{Term: 1, Index: 2, Kind: wire.EntryCommand, Payload: []byte("a")},
		{Term: 1, Index: 3, Kind: wire.EntryCommand, Payload: []byte("b")},
		{Term: 1, Index: 4, Kind: wire.EntryCommand, Payload: []byte("c")},
	})

	truncDone := make(chan error, 1)
	fs.Truncate(3, func(err error) { truncDone <- err })
	if err := <-truncDone; err != nil {
		t.Fatalf("truncate: %v", err)
	}

	loaded, err := fs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("expected 2 entries after truncating from index 3, got %d", len(loaded.Entries))
	}
	if loaded.Entries[len(loaded.Entries)-1].Index != 2 {
		t.Fatalf("truncate kept the wrong tail entry: %+v", loaded.Entries[len(loaded.Entries)-1])
	}
}

func TestFileStore_SnapshotPutTruncatesPrefix(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.Bootstrap(testConfiguration()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	var entries []wire.Entry
	for i := uint64(2); i <= 10; i++ {
		entries = append(entries, wire.Entry{Term: 1, Index: i, Kind: wire.EntryCommand, Payload: []byte("x")})
	}
	mustAppend(t, fs, entries)

	snap := storage.Snapshot{
		LastIndex:     8,
		LastTerm:      1,
		Configuration: testConfiguration(),
		Payload:       []byte("state"),
	}
	putDone := make(chan error, 1)
	fs.SnapshotPut(2, snap, func(err error) { putDone <- err })
	if err := <-putDone; err != nil {
		t.Fatalf("snapshot put: %v", err)
	}

	loaded, err := fs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Snapshot == nil || loaded.Snapshot.LastIndex != 8 {
		t.Fatalf("snapshot not persisted: %+v", loaded.Snapshot)
	}
	// trailing=2 keeps entries with index > 6.
	for _, e := range loaded.Entries {
		if e.Index <= 6 {
			t.Fatalf("entry %d should have been compacted away", e.Index)
		}
	}
}

func TestFileStore_RefusesConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := filestore.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		done := make(chan error, 1)
		fs.Close(func(err error) { done <- err })
		<-done
	}()

	if _, err := filestore.Open(dir); err == nil {
		t.Fatalf("expected second Open of a locked directory to fail")
	}
}
