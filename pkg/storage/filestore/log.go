package filestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/raftcore/pkg/wire"
)

// openSegment is the single segment still being appended to.
type openSegment struct {
	file    *os.File
	counter int
	start   uint64 // index of the first entry in this segment (0 if still empty and unknown)
	end     uint64 // index of the last entry written, 0 if empty
}

// scanSegments discovers every "<start>-<end>" closed segment and the
// (at most one) "open-<counter>" segment already on disk, without
// reading their contents yet.
func (fs *FileStore) scanSegments() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return fmt.Errorf("filestore: read dir: %w", err)
	}

	var openCounter = -1
	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, "open-") {
			if n, err := strconv.Atoi(strings.TrimPrefix(name, "open-")); err == nil && n > openCounter {
				openCounter = n
			}
			continue
		}
		parts := strings.SplitN(name, "-", 2)
		if len(parts) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(parts[0], 10, 64)
		end, err2 := strconv.ParseUint(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		fs.segments = append(fs.segments, segmentRef{path: fs.path(name), start: start, end: end})
	}
	sort.Slice(fs.segments, func(i, j int) bool { return fs.segments[i].start < fs.segments[j].start })

	if openCounter < 0 {
		openCounter = 0
	}
	f, err := os.OpenFile(fs.path(fmt.Sprintf("open-%d", openCounter)), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open segment: %w", err)
	}
	seg := &openSegment{file: f, counter: openCounter}
	if len(fs.segments) > 0 {
		seg.start = fs.segments[len(fs.segments)-1].end + 1
	}
	fs.open = seg
	return nil
}

// loadEntries reads every entry across the closed segments and the open
// segment, in index order, for Load.
func (fs *FileStore) loadEntries() ([]wire.Entry, error) {
	var out []wire.Entry
	for _, seg := range fs.segments {
		es, err := readSegmentFile(seg.path)
		if err != nil {
			return nil, fmt.Errorf("filestore: read segment %s: %w", seg.path, err)
		}
		out = append(out, es...)
	}
	if _, err := fs.open.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	es, err := readSegmentReader(fs.open.file)
	if err != nil {
		return nil, fmt.Errorf("filestore: read open segment: %w", err)
	}
	out = append(out, es...)
	if n := len(out); n > 0 {
		fs.open.end = out[n-1].Index
		if fs.open.start == 0 {
			fs.open.start = out[0].Index
		}
		fs.nextIndex = out[n-1].Index + 1
	} else if fs.open.start > 0 {
		fs.nextIndex = fs.open.start
	} else {
		fs.nextIndex = 1
	}
	if _, err := fs.open.file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return out, nil
}

func readSegmentFile(path string) ([]wire.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readSegmentReader(f)
}

func readSegmentReader(r io.Reader) ([]wire.Entry, error) {
	var out []wire.Entry
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		e, err := wire.DecodeEntry(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func writeSegmentRecord(w io.Writer, e wire.Entry) error {
	buf := wire.EncodeEntry(e)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

// appendEntries writes entries to the open segment and fsyncs once.
func (fs *FileStore) appendEntries(entries []wire.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, e := range entries {
		if err := writeSegmentRecord(fs.open.file, e); err != nil {
			return fmt.Errorf("filestore: append entry %d: %w", e.Index, err)
		}
		fs.open.end = e.Index
		if fs.open.start == 0 {
			fs.open.start = e.Index
		}
		fs.nextIndex = e.Index + 1
	}
	return fs.open.file.Sync()
}

// truncateSuffix discards every on-disk entry with index >= from. It
// only ever needs to touch the open segment in the common case (from is
// always past the last snapshot and almost always past the last closed
// segment, since closed segments only ever hold committed entries); the
// rare case of from reaching back into a closed segment is handled by
// dropping later closed segments outright and rewriting the one from
// falls inside.
func (fs *FileStore) truncateSuffix(from uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.open.start == 0 || from <= fs.open.start {
		return fs.truncateAcrossSegments(from)
	}
	return fs.rewriteOpenSegment(func(e wire.Entry) bool { return e.Index < from })
}

func (fs *FileStore) rewriteOpenSegment(keep func(wire.Entry) bool) error {
	if _, err := fs.open.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	entries, err := readSegmentReader(fs.open.file)
	if err != nil {
		return err
	}
	if err := fs.open.file.Truncate(0); err != nil {
		return err
	}
	if _, err := fs.open.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var last uint64
	var first uint64
	for _, e := range entries {
		if !keep(e) {
			continue
		}
		if first == 0 {
			first = e.Index
		}
		last = e.Index
		if err := writeSegmentRecord(fs.open.file, e); err != nil {
			return err
		}
	}
	fs.open.start = first
	fs.open.end = last
	if last > 0 {
		fs.nextIndex = last + 1
	} else if first > 0 {
		fs.nextIndex = first
	}
	return fs.open.file.Sync()
}

// truncateAcrossSegments handles a suffix truncation reaching back into
// the closed segments: delete closed segments entirely past from, and if
// from falls inside a closed segment, that segment becomes the new open
// segment with its tail discarded.
func (fs *FileStore) truncateAcrossSegments(from uint64) error {
	var kept []segmentRef
	var reopen *segmentRef
	for i, seg := range fs.segments {
		switch {
		case seg.end < from:
			kept = append(kept, seg)
		case seg.start < from && from <= seg.end:
			r := fs.segments[i]
			reopen = &r
		default:
			if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	fs.segments = kept

	if err := fs.open.file.Truncate(0); err != nil {
		return err
	}
	if _, err := fs.open.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	fs.open.start, fs.open.end = 0, 0
	fs.nextIndex = from

	if reopen != nil {
		entries, err := readSegmentFile(reopen.path)
		if err != nil {
			return err
		}
		if err := os.Remove(reopen.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		for _, e := range entries {
			if e.Index >= from {
				break
			}
			if err := writeSegmentRecord(fs.open.file, e); err != nil {
				return err
			}
			if fs.open.start == 0 {
				fs.open.start = e.Index
			}
			fs.open.end = e.Index
			fs.nextIndex = e.Index + 1
		}
	}
	return fs.open.file.Sync()
}

// truncatePrefix runs once a snapshot has been taken: it removes the
// closed segments and the current open segment, then starts a fresh
// open segment (next counter) holding only entries after upto (the
// trailing window kept for fast follower catch-up). No closed segment is
// written.
func (fs *FileStore) truncatePrefix(upto uint64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var all []wire.Entry
	for _, seg := range fs.segments {
		if seg.end <= upto {
			if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		es, err := readSegmentFile(seg.path)
		if err != nil {
			return err
		}
		all = append(all, es...)
		if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if _, err := fs.open.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	openEntries, err := readSegmentReader(fs.open.file)
	if err != nil {
		return err
	}
	all = append(all, openEntries...)

	newCounter := fs.open.counter + 1
	if err := fs.open.file.Close(); err != nil {
		return err
	}
	if err := os.Remove(fs.path(fmt.Sprintf("open-%d", fs.open.counter))); err != nil && !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(fs.path(fmt.Sprintf("open-%d", newCounter)), os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	fs.open = &openSegment{file: f, counter: newCounter}
	fs.segments = nil

	for _, e := range all {
		if e.Index <= upto {
			continue
		}
		if err := writeSegmentRecord(fs.open.file, e); err != nil {
			return err
		}
		if fs.open.start == 0 {
			fs.open.start = e.Index
		}
		fs.open.end = e.Index
	}
	return fs.open.file.Sync()
}
