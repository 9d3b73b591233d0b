package wire

import "encoding/binary"

// MessageKind is the tag of the seven-member RPC taxonomy (§6), dispatched
// by a single switch in the engine's dispatcher rather than by
// polymorphic method dispatch (Design Notes: "tagged sum ... dispatched
// by a single match").
type MessageKind uint8

const (
	MsgRequestVote MessageKind = iota + 1
	MsgRequestVoteResult
	MsgAppendEntries
	MsgAppendEntriesResult
	MsgInstallSnapshot
	MsgInstallSnapshotResult
	MsgTimeoutNow
)

func (k MessageKind) String() string {
	switch k {
	case MsgRequestVote:
		return "request_vote"
	case MsgRequestVoteResult:
		return "request_vote_result"
	case MsgAppendEntries:
		return "append_entries"
	case MsgAppendEntriesResult:
		return "append_entries_result"
	case MsgInstallSnapshot:
		return "install_snapshot"
	case MsgInstallSnapshotResult:
		return "install_snapshot_result"
	case MsgTimeoutNow:
		return "timeout_now"
	default:
		return "unknown"
	}
}

// RequestVote is a candidate's vote solicitation.
type RequestVote struct {
	Term         uint64
	CandidateID  uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteResult is a follower's response to RequestVote.
type RequestVoteResult struct {
	Term    uint64
	Granted bool
}

// AppendEntries replicates a run of entries (or serves as a heartbeat
// when Entries is empty).
type AppendEntries struct {
	Term         uint64
	LeaderID     uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []Entry
	LeaderCommit uint64
}

// AppendEntriesResult is a follower's response to AppendEntries. LastLogIndex
// doubles as the conflict hint on rejection (§4.3).
type AppendEntriesResult struct {
	Term          uint64
	Success       bool
	LastLogIndex  uint64
}

// InstallSnapshot carries a compacted log prefix to a lagging follower.
type InstallSnapshot struct {
	Term               uint64
	LeaderID           uint64
	LastIndex          uint64
	LastTerm           uint64
	Configuration      Configuration
	ConfigurationIndex uint64
	Payload            []byte
}

// InstallSnapshotResult is a follower's response. InProgress is set when
// the receiver accepted the snapshot but is still restoring the FSM
// asynchronously (§4.6); the sender keeps its Progress in Snapshot state
// until a result with InProgress == false arrives.
type InstallSnapshotResult struct {
	Term       uint64
	Success    bool
	InProgress bool
}

// TimeoutNow asks its recipient to start an election immediately, used by
// leadership transfer.
type TimeoutNow struct {
	Term uint64
}

// Envelope wraps any one of the seven message kinds with the sender's
// identity, so the transport only needs to move opaque, addressed
// envelopes.
type Envelope struct {
	Kind          MessageKind
	SenderID      uint64
	SenderAddress string

	RequestVote           *RequestVote
	RequestVoteResult     *RequestVoteResult
	AppendEntries         *AppendEntries
	AppendEntriesResult   *AppendEntriesResult
	InstallSnapshot       *InstallSnapshot
	InstallSnapshotResult *InstallSnapshotResult
	TimeoutNow            *TimeoutNow
}

// Term returns the envelope's carried term, used uniformly by the
// dispatcher before routing to a role-specific handler (§2: "update term
// if needed").
func (e Envelope) Term() uint64 {
	switch e.Kind {
	case MsgRequestVote:
		return e.RequestVote.Term
	case MsgRequestVoteResult:
		return e.RequestVoteResult.Term
	case MsgAppendEntries:
		return e.AppendEntries.Term
	case MsgAppendEntriesResult:
		return e.AppendEntriesResult.Term
	case MsgInstallSnapshot:
		return e.InstallSnapshot.Term
	case MsgInstallSnapshotResult:
		return e.InstallSnapshotResult.Term
	case MsgTimeoutNow:
		return e.TimeoutNow.Term
	default:
		return 0
	}
}

const envelopeEncodingVersion = 1

// EncodeEnvelope serializes e with the same versioned, little-endian,
// explicit-length style as EncodeEntry (§6). It is what
// pkg/transport/grpctransport puts on the wire as opaque stream frames.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	body, err := encodeEnvelopeBody(e)
	if err != nil {
		return nil, err
	}
	addr := []byte(e.SenderAddress)
	buf := make([]byte, 1+1+8+2+len(addr)+len(body))
	buf[0] = envelopeEncodingVersion
	buf[1] = byte(e.Kind)
	binary.LittleEndian.PutUint64(buf[2:10], e.SenderID)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(addr)))
	off := 12
	copy(buf[off:], addr)
	off += len(addr)
	copy(buf[off:], body)
	return buf, nil
}

// DecodeEnvelope is the inverse of EncodeEnvelope.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	if len(buf) < 12 {
		return Envelope{}, NewError(CodeMalformed, "envelope header truncated")
	}
	if buf[0] != envelopeEncodingVersion {
		return Envelope{}, NewError(CodeMalformed, "unsupported envelope encoding version")
	}
	e := Envelope{Kind: MessageKind(buf[1]), SenderID: binary.LittleEndian.Uint64(buf[2:10])}
	alen := int(binary.LittleEndian.Uint16(buf[10:12]))
	off := 12
	if off+alen > len(buf) {
		return Envelope{}, NewError(CodeMalformed, "envelope address truncated")
	}
	e.SenderAddress = string(buf[off : off+alen])
	off += alen
	if err := decodeEnvelopeBody(&e, buf[off:]); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func putUint64(buf []byte, off int, v uint64) int {
	binary.LittleEndian.PutUint64(buf[off:off+8], v)
	return off + 8
}

func getUint64(buf []byte, off int) (uint64, int) {
	return binary.LittleEndian.Uint64(buf[off : off+8]), off + 8
}

func putBool(buf []byte, off int, v bool) int {
	if v {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	return off + 1
}

func getBool(buf []byte, off int) (bool, int) {
	return buf[off] != 0, off + 1
}

func putBytes(buf []byte, off int, v []byte) int {
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(v)))
	off += 4
	copy(buf[off:], v)
	return off + len(v)
}

func getBytes(buf []byte, off int) ([]byte, int, error) {
	if off+4 > len(buf) {
		return nil, 0, NewError(CodeMalformed, "length-prefixed field truncated")
	}
	n := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if off+n > len(buf) {
		return nil, 0, NewError(CodeMalformed, "length-prefixed field body truncated")
	}
	out := make([]byte, n)
	copy(out, buf[off:off+n])
	return out, off + n, nil
}

func encodeEnvelopeBody(e Envelope) ([]byte, error) {
	switch e.Kind {
	case MsgRequestVote:
		m := e.RequestVote
		buf := make([]byte, 8*4)
		off := 0
		off = putUint64(buf, off, m.Term)
		off = putUint64(buf, off, m.CandidateID)
		off = putUint64(buf, off, m.LastLogIndex)
		putUint64(buf, off, m.LastLogTerm)
		return buf, nil
	case MsgRequestVoteResult:
		m := e.RequestVoteResult
		buf := make([]byte, 8+1)
		off := putUint64(buf, 0, m.Term)
		putBool(buf, off, m.Granted)
		return buf, nil
	case MsgAppendEntries:
		m := e.AppendEntries
		encoded := make([][]byte, len(m.Entries))
		total := 8*4 + 8 + 4
		for i, ent := range m.Entries {
			encoded[i] = EncodeEntry(ent)
			total += 4 + len(encoded[i])
		}
		buf := make([]byte, total)
		off := 0
		off = putUint64(buf, off, m.Term)
		off = putUint64(buf, off, m.LeaderID)
		off = putUint64(buf, off, m.PrevLogIndex)
		off = putUint64(buf, off, m.PrevLogTerm)
		off = putUint64(buf, off, m.LeaderCommit)
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(encoded)))
		off += 4
		for _, enc := range encoded {
			off = putBytes(buf, off, enc)
		}
		return buf, nil
	case MsgAppendEntriesResult:
		m := e.AppendEntriesResult
		buf := make([]byte, 8+1+8)
		off := putUint64(buf, 0, m.Term)
		off = putBool(buf, off, m.Success)
		putUint64(buf, off, m.LastLogIndex)
		return buf, nil
	case MsgInstallSnapshot:
		m := e.InstallSnapshot
		cfgBytes, err := EncodeConfiguration(m.Configuration)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8*5+4+len(cfgBytes)+4+len(m.Payload))
		off := 0
		off = putUint64(buf, off, m.Term)
		off = putUint64(buf, off, m.LeaderID)
		off = putUint64(buf, off, m.LastIndex)
		off = putUint64(buf, off, m.LastTerm)
		off = putUint64(buf, off, m.ConfigurationIndex)
		off = putBytes(buf, off, cfgBytes)
		putBytes(buf, off, m.Payload)
		return buf, nil
	case MsgInstallSnapshotResult:
		m := e.InstallSnapshotResult
		buf := make([]byte, 8+1+1)
		off := putUint64(buf, 0, m.Term)
		off = putBool(buf, off, m.Success)
		putBool(buf, off, m.InProgress)
		return buf, nil
	case MsgTimeoutNow:
		buf := make([]byte, 8)
		putUint64(buf, 0, e.TimeoutNow.Term)
		return buf, nil
	default:
		return nil, NewError(CodeMalformed, "unknown message kind")
	}
}

func decodeEnvelopeBody(e *Envelope, buf []byte) error {
	switch e.Kind {
	case MsgRequestVote:
		if len(buf) < 32 {
			return NewError(CodeMalformed, "request_vote truncated")
		}
		m := &RequestVote{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.CandidateID, off = getUint64(buf, off)
		m.LastLogIndex, off = getUint64(buf, off)
		m.LastLogTerm, _ = getUint64(buf, off)
		e.RequestVote = m
	case MsgRequestVoteResult:
		if len(buf) < 9 {
			return NewError(CodeMalformed, "request_vote_result truncated")
		}
		m := &RequestVoteResult{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.Granted, _ = getBool(buf, off)
		e.RequestVoteResult = m
	case MsgAppendEntries:
		if len(buf) < 36 {
			return NewError(CodeMalformed, "append_entries truncated")
		}
		m := &AppendEntries{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.LeaderID, off = getUint64(buf, off)
		m.PrevLogIndex, off = getUint64(buf, off)
		m.PrevLogTerm, off = getUint64(buf, off)
		m.LeaderCommit, off = getUint64(buf, off)
		if off+4 > len(buf) {
			return NewError(CodeMalformed, "append_entries entry count truncated")
		}
		count := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		m.Entries = make([]Entry, 0, count)
		for i := 0; i < count; i++ {
			enc, next, err := getBytes(buf, off)
			if err != nil {
				return err
			}
			off = next
			ent, err := DecodeEntry(enc)
			if err != nil {
				return err
			}
			m.Entries = append(m.Entries, ent)
		}
		e.AppendEntries = m
	case MsgAppendEntriesResult:
		if len(buf) < 17 {
			return NewError(CodeMalformed, "append_entries_result truncated")
		}
		m := &AppendEntriesResult{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.Success, off = getBool(buf, off)
		m.LastLogIndex, _ = getUint64(buf, off)
		e.AppendEntriesResult = m
	case MsgInstallSnapshot:
		if len(buf) < 40 {
			return NewError(CodeMalformed, "install_snapshot truncated")
		}
		m := &InstallSnapshot{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.LeaderID, off = getUint64(buf, off)
		m.LastIndex, off = getUint64(buf, off)
		m.LastTerm, off = getUint64(buf, off)
		m.ConfigurationIndex, off = getUint64(buf, off)
		cfgBytes, off2, err := getBytes(buf, off)
		if err != nil {
			return err
		}
		off = off2
		cfg, err := DecodeConfiguration(cfgBytes)
		if err != nil {
			return err
		}
		m.Configuration = cfg
		payload, _, err := getBytes(buf, off)
		if err != nil {
			return err
		}
		m.Payload = payload
		e.InstallSnapshot = m
	case MsgInstallSnapshotResult:
		if len(buf) < 10 {
			return NewError(CodeMalformed, "install_snapshot_result truncated")
		}
		m := &InstallSnapshotResult{}
		off := 0
		m.Term, off = getUint64(buf, off)
		m.Success, off = getBool(buf, off)
		m.InProgress, _ = getBool(buf, off)
		e.InstallSnapshotResult = m
	case MsgTimeoutNow:
		if len(buf) < 8 {
			return NewError(CodeMalformed, "timeout_now truncated")
		}
		term, _ := getUint64(buf, 0)
		e.TimeoutNow = &TimeoutNow{Term: term}
	default:
		return NewError(CodeMalformed, "unknown message kind")
	}
	return nil
}
