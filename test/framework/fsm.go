package framework

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
)

// RecordingFSM is a minimal raft.FSM that just remembers every payload it
// applied, in order, so tests can assert on apply order and on
// convergence across nodes after a snapshot/restore cycle.
type RecordingFSM struct {
	mu      sync.Mutex
	applied [][]byte
}

// NewRecordingFSM returns an empty RecordingFSM.
func NewRecordingFSM() *RecordingFSM {
	return &RecordingFSM{}
}

func (f *RecordingFSM) Apply(payload []byte) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, append([]byte(nil), payload...))
	return len(f.applied), nil
}

func (f *RecordingFSM) Snapshot(w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.applied {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *RecordingFSM) Restore(r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = nil
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		f.applied = append(f.applied, buf)
	}
}

// Applied returns a snapshot of every payload applied so far, in order.
func (f *RecordingFSM) Applied() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.applied))
	copy(out, f.applied)
	return out
}

// Equal reports whether two RecordingFSMs hold identical applied logs.
func (f *RecordingFSM) Equal(other *RecordingFSM) bool {
	a, b := f.Applied(), other.Applied()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
