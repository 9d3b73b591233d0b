package filestore

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/wire"
)

// snapshotRef names one retained snapshot's metadata+data file pair.
type snapshotRef struct {
	term, index uint64
	stamp       uint64
	metaPath    string
	dataPath    string
}

func snapshotBaseName(term, index, stamp uint64) string {
	return fmt.Sprintf("snapshot-%d-%d-%d", term, index, stamp)
}

// loadSnapshotRefs scans for "snapshot-<term>-<index>-<stamp>.meta" files
// and keeps the two most recent by index, per §4.6's two-snapshot
// retention so a slow follower can still be served the previous one.
func (fs *FileStore) loadSnapshotRefs() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return err
	}
	var refs []snapshotRef
	for _, de := range entries {
		name := de.Name()
		if !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".meta") {
			continue
		}
		base := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".meta")
		parts := strings.Split(base, "-")
		if len(parts) != 3 {
			continue
		}
		term, e1 := strconv.ParseUint(parts[0], 10, 64)
		index, e2 := strconv.ParseUint(parts[1], 10, 64)
		stamp, e3 := strconv.ParseUint(parts[2], 10, 64)
		if e1 != nil || e2 != nil || e3 != nil {
			continue
		}
		refs = append(refs, snapshotRef{
			term: term, index: index, stamp: stamp,
			metaPath: fs.path(name),
			dataPath: fs.path("snapshot-" + base + ".data"),
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].index > refs[j].index })
	if len(refs) > 0 {
		r := refs[0]
		fs.snapLast = &r
	}
	if len(refs) > 1 {
		r := refs[1]
		fs.snapPrev = &r
	}
	// anything older than the two retained is stale from a previous run
	// that crashed before cleanup; remove it now.
	for _, r := range refs[2:] {
		os.Remove(r.metaPath)
		os.Remove(r.dataPath)
	}
	return nil
}

// writeSnapshotFiles persists snap's metadata and payload, then drops the
// oldest retained snapshot once the new one is safely on disk.
func (fs *FileStore) writeSnapshotFiles(snap storage.Snapshot, stamp uint64) error {
	cfgBytes, err := wire.EncodeConfiguration(snap.Configuration)
	if err != nil {
		return fmt.Errorf("filestore: encode snapshot configuration: %w", err)
	}

	base := snapshotBaseName(snap.LastTerm, snap.LastIndex, stamp)
	metaPath := fs.path("snapshot-" + base + ".meta")
	dataPath := fs.path("snapshot-" + base + ".data")

	meta := make([]byte, 1+8+8+8+4+len(cfgBytes))
	meta[0] = 1
	binary.LittleEndian.PutUint64(meta[1:9], snap.LastIndex)
	binary.LittleEndian.PutUint64(meta[9:17], snap.LastTerm)
	binary.LittleEndian.PutUint64(meta[17:25], snap.ConfigurationIndex)
	binary.LittleEndian.PutUint32(meta[25:29], uint32(len(cfgBytes)))
	copy(meta[29:], cfgBytes)

	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		return fmt.Errorf("filestore: write snapshot meta: %w", err)
	}
	if err := os.WriteFile(dataPath, snap.Payload, 0o644); err != nil {
		return fmt.Errorf("filestore: write snapshot data: %w", err)
	}

	fs.mu.Lock()
	oldest := fs.snapPrev
	fs.snapPrev = fs.snapLast
	fs.snapLast = &snapshotRef{
		term: snap.LastTerm, index: snap.LastIndex, stamp: stamp,
		metaPath: metaPath, dataPath: dataPath,
	}
	fs.mu.Unlock()

	if oldest != nil {
		os.Remove(oldest.metaPath)
		os.Remove(oldest.dataPath)
	}
	return nil
}

func readSnapshot(ref *snapshotRef) (*storage.Snapshot, error) {
	if ref == nil {
		return nil, nil
	}
	meta, err := os.ReadFile(ref.metaPath)
	if err != nil {
		return nil, fmt.Errorf("filestore: read snapshot meta: %w", err)
	}
	if len(meta) < 29 {
		return nil, fmt.Errorf("filestore: snapshot meta truncated")
	}
	lastIndex := binary.LittleEndian.Uint64(meta[1:9])
	lastTerm := binary.LittleEndian.Uint64(meta[9:17])
	cfgIndex := binary.LittleEndian.Uint64(meta[17:25])
	cfgLen := binary.LittleEndian.Uint32(meta[25:29])
	if len(meta) != 29+int(cfgLen) {
		return nil, fmt.Errorf("filestore: snapshot meta configuration length mismatch")
	}
	cfg, err := wire.DecodeConfiguration(meta[29:])
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(ref.dataPath)
	if err != nil {
		return nil, fmt.Errorf("filestore: read snapshot data: %w", err)
	}
	return &storage.Snapshot{
		LastIndex:          lastIndex,
		LastTerm:           lastTerm,
		Configuration:      cfg,
		ConfigurationIndex: cfgIndex,
		Payload:            payload,
	}, nil
}
