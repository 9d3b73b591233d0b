/*
Package filestore is the reference storage.Backend: a plain-files
implementation with no embedded database. A data directory holds:

  - two alternating metadata files ("metadata1", "metadata2"), each
    CRC32-checked, recording current_term/voted_for with a sequence
    number — alternating writes mean a crash mid-write to one never
    corrupts the other, so Load always has a readable copy.
  - at most one open segment named "open-<counter>" (little-endian
    binary entries, length-prefixed) that every append goes to. Closed
    segments named "<start>-<end>" (both inclusive) are read at Open if
    present, but this store never creates one: truncatePrefix drops them
    and rewrites the kept entries into a new open segment.
  - snapshot metadata/data file pairs named
    "snapshot-<term>-<index>-<timestamp>.meta" / ".data"; the two most
    recent snapshots are retained so a slow follower can still be served
    the previous one while a new one is being shipped.

The directory is exclusively locked for the process's lifetime via a
"LOCK" file, so two raftcore processes can never share a data directory.
*/
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/raftcore/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// FileStore is the reference storage.Backend.
type FileStore struct {
	dir string
	log zerolog.Logger

	lockFile *os.File

	mu          sync.Mutex
	currentTerm uint64
	votedFor    uint64
	metaSlot    int    // 0 or 1: which of metadata1/metadata2 was written last
	metaSeq     uint64 // monotonic write counter, breaks ties between the two files

	segments  []segmentRef // closed segments, in index order
	open      *openSegment
	nextIndex uint64 // index the next appended entry will get

	snapLast *snapshotRef
	snapPrev *snapshotRef
}

type segmentRef struct {
	path       string
	start, end uint64
}

// Open acquires dir's exclusive lock and returns a FileStore ready for
// Load. dir is created if it does not already exist.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, "LOCK")
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filestore: open lock file: %w", err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lf.Close()
		return nil, fmt.Errorf("filestore: directory %s is already locked by another process: %w", dir, err)
	}

	fs := &FileStore{
		dir:      dir,
		log:      log.Component("filestore"),
		lockFile: lf,
	}
	if err := fs.scanSegments(); err != nil {
		fs.unlock()
		return nil, err
	}
	if err := fs.loadMetadata(); err != nil {
		fs.unlock()
		return nil, err
	}
	if err := fs.loadSnapshotRefs(); err != nil {
		fs.unlock()
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) unlock() {
	unix.Flock(int(fs.lockFile.Fd()), unix.LOCK_UN)
	fs.lockFile.Close()
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.dir, name)
}
