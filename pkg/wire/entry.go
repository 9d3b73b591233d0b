// Package wire defines the types shared across the consensus engine's
// external boundary: the log entry and configuration records that the
// engine (pkg/raft), the storage backend (pkg/storage), and the
// transport (pkg/transport) all need to refer to without creating an
// import cycle between those three.
package wire

import (
	"encoding/binary"
	"fmt"
)

// EntryKind distinguishes the three kinds of log entry (§3).
type EntryKind uint8

const (
	EntryCommand EntryKind = iota + 1
	EntryBarrier
	EntryConfiguration
)

func (k EntryKind) String() string {
	switch k {
	case EntryCommand:
		return "command"
	case EntryBarrier:
		return "barrier"
	case EntryConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Entry is one element of the replicated log. (Term, Index) uniquely
// identifies an entry across the cluster (Log Matching, §3).
type Entry struct {
	Term    uint64
	Index   uint64
	Kind    EntryKind
	Payload []byte
}

const entryEncodingVersion = 1

// EncodeEntry serializes an entry with a small versioned binary header:
// version, kind, term, index, payload length, payload — little-endian
// with explicit lengths, per §6's wire/disk encoding requirement.
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, 1+1+8+8+4+len(e.Payload))
	buf[0] = entryEncodingVersion
	buf[1] = byte(e.Kind)
	binary.LittleEndian.PutUint64(buf[2:10], e.Term)
	binary.LittleEndian.PutUint64(buf[10:18], e.Index)
	binary.LittleEndian.PutUint32(buf[18:22], uint32(len(e.Payload)))
	copy(buf[22:], e.Payload)
	return buf
}

// DecodeEntry is the inverse of EncodeEntry. It returns CodeMalformed if
// buf is short or its declared payload length doesn't match.
func DecodeEntry(buf []byte) (Entry, error) {
	if len(buf) < 22 {
		return Entry{}, NewError(CodeMalformed, "entry header truncated")
	}
	if buf[0] != entryEncodingVersion {
		return Entry{}, NewError(CodeMalformed, fmt.Sprintf("unsupported entry encoding version %d", buf[0]))
	}
	e := Entry{
		Kind:  EntryKind(buf[1]),
		Term:  binary.LittleEndian.Uint64(buf[2:10]),
		Index: binary.LittleEndian.Uint64(buf[10:18]),
	}
	plen := binary.LittleEndian.Uint32(buf[18:22])
	if len(buf) != 22+int(plen) {
		return Entry{}, NewError(CodeMalformed, "entry payload length mismatch")
	}
	if plen > 0 {
		e.Payload = make([]byte, plen)
		copy(e.Payload, buf[22:])
	}
	return e, nil
}

// ServerRole is a membership role (§3/Glossary). Only Voter counts toward
// quorum and may vote; Standby and Spare receive entries but never
// initiate elections.
type ServerRole uint8

const (
	Voter ServerRole = iota + 1
	Standby
	Spare
)

func (r ServerRole) String() string {
	switch r {
	case Voter:
		return "voter"
	case Standby:
		return "standby"
	case Spare:
		return "spare"
	default:
		return "unknown"
	}
}

// Server is one member of a Configuration.
type Server struct {
	ID      uint64
	Address string
	Role    ServerRole
}

// Configuration is an ordered list of servers (§3). It is encoded as a
// versioned record both as a log entry's payload (Kind ==
// EntryConfiguration) and inside snapshot metadata.
type Configuration struct {
	Servers []Server
}

const configEncodingVersion = 1

// MaxConfigurationBytes bounds an encoded configuration, matching the
// 1 MiB cap §6 places on snapshot-metadata configuration bytes.
const MaxConfigurationBytes = 1 << 20

// EncodeConfiguration serializes a Configuration as
// [version:1][count:2]{[id:8][role:1][addr_len:2][addr]}*.
func EncodeConfiguration(c Configuration) ([]byte, error) {
	if len(c.Servers) > 1<<16-1 {
		return nil, NewError(CodeMalformed, "too many servers to encode")
	}
	size := 3
	for _, s := range c.Servers {
		size += 8 + 1 + 2 + len(s.Address)
	}
	if size > MaxConfigurationBytes {
		return nil, NewError(CodeMalformed, "configuration exceeds max encoded size")
	}
	buf := make([]byte, size)
	buf[0] = configEncodingVersion
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(c.Servers)))
	off := 3
	for _, s := range c.Servers {
		binary.LittleEndian.PutUint64(buf[off:off+8], s.ID)
		buf[off+8] = byte(s.Role)
		addr := []byte(s.Address)
		binary.LittleEndian.PutUint16(buf[off+9:off+11], uint16(len(addr)))
		copy(buf[off+11:], addr)
		off += 11 + len(addr)
	}
	return buf, nil
}

// DecodeConfiguration is the inverse of EncodeConfiguration.
func DecodeConfiguration(buf []byte) (Configuration, error) {
	if len(buf) < 3 {
		return Configuration{}, NewError(CodeMalformed, "configuration header truncated")
	}
	if buf[0] != configEncodingVersion {
		return Configuration{}, NewError(CodeMalformed, fmt.Sprintf("unsupported configuration encoding version %d", buf[0]))
	}
	count := binary.LittleEndian.Uint16(buf[1:3])
	cfg := Configuration{Servers: make([]Server, 0, count)}
	off := 3
	for i := 0; i < int(count); i++ {
		if off+11 > len(buf) {
			return Configuration{}, NewError(CodeMalformed, "configuration entry truncated")
		}
		id := binary.LittleEndian.Uint64(buf[off : off+8])
		role := ServerRole(buf[off+8])
		alen := int(binary.LittleEndian.Uint16(buf[off+9 : off+11]))
		off += 11
		if off+alen > len(buf) {
			return Configuration{}, NewError(CodeMalformed, "configuration address truncated")
		}
		addr := string(buf[off : off+alen])
		off += alen
		cfg.Servers = append(cfg.Servers, Server{ID: id, Address: addr, Role: role})
	}
	return cfg, nil
}

// Voters returns the subset of c.Servers with Role == Voter, in order.
func (c Configuration) Voters() []Server {
	out := make([]Server, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s.Role == Voter {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the server with the given id, if present.
func (c Configuration) Find(id uint64) (Server, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return Server{}, false
}

// Quorum is the size of a strict majority of c's voters.
func (c Configuration) Quorum() int {
	return len(c.Voters())/2 + 1
}

// WithServer returns a copy of c with id's entry replaced (or appended,
// if absent) by server.
func (c Configuration) WithServer(server Server) Configuration {
	out := Configuration{Servers: make([]Server, 0, len(c.Servers)+1)}
	found := false
	for _, s := range c.Servers {
		if s.ID == server.ID {
			out.Servers = append(out.Servers, server)
			found = true
			continue
		}
		out.Servers = append(out.Servers, s)
	}
	if !found {
		out.Servers = append(out.Servers, server)
	}
	return out
}

// WithoutServer returns a copy of c with id removed.
func (c Configuration) WithoutServer(id uint64) Configuration {
	out := Configuration{Servers: make([]Server, 0, len(c.Servers))}
	for _, s := range c.Servers {
		if s.ID != id {
			out.Servers = append(out.Servers, s)
		}
	}
	return out
}

// Clone deep-copies c.
func (c Configuration) Clone() Configuration {
	out := Configuration{Servers: make([]Server, len(c.Servers))}
	copy(out.Servers, c.Servers)
	return out
}
