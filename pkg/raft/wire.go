package raft

import "github.com/cuemby/raftcore/pkg/wire"

// Re-exported so callers and the rest of this package can write raft.Entry,
// raft.Configuration, etc. without importing pkg/wire directly; they are
// the same types pkg/storage and pkg/transport use at the boundary.
type (
	Entry         = wire.Entry
	EntryKind     = wire.EntryKind
	Configuration = wire.Configuration
	Server        = wire.Server
	ServerRole    = wire.ServerRole
	Code          = wire.Code
	Error         = wire.Error

	MessageKind           = wire.MessageKind
	Envelope              = wire.Envelope
	RequestVote           = wire.RequestVote
	RequestVoteResult     = wire.RequestVoteResult
	AppendEntries         = wire.AppendEntries
	AppendEntriesResult   = wire.AppendEntriesResult
	InstallSnapshot       = wire.InstallSnapshot
	InstallSnapshotResult = wire.InstallSnapshotResult
	TimeoutNow            = wire.TimeoutNow
)

const (
	EntryCommand       = wire.EntryCommand
	EntryBarrier       = wire.EntryBarrier
	EntryConfiguration = wire.EntryConfiguration

	Voter   = wire.Voter
	Standby = wire.Standby
	Spare   = wire.Spare

	CodeNone           = wire.CodeNone
	CodeNotLeader      = wire.CodeNotLeader
	CodeNotFound       = wire.CodeNotFound
	CodeBadID          = wire.CodeBadID
	CodeBadRole        = wire.CodeBadRole
	CodeCannotChange   = wire.CodeCannotChange
	CodeShutdown       = wire.CodeShutdown
	CodeIOError        = wire.CodeIOError
	CodeNoMem          = wire.CodeNoMem
	CodeMalformed      = wire.CodeMalformed
	CodeCorrupt        = wire.CodeCorrupt
	CodeCanceled       = wire.CodeCanceled
	CodeNoConnection   = wire.CodeNoConnection
	CodeNoSpace        = wire.CodeNoSpace
	CodeCompactedRange = wire.CodeCompactedRange
	CodeCatchUpFailed  = wire.CodeCatchUpFailed

	MsgRequestVote           = wire.MsgRequestVote
	MsgRequestVoteResult     = wire.MsgRequestVoteResult
	MsgAppendEntries         = wire.MsgAppendEntries
	MsgAppendEntriesResult   = wire.MsgAppendEntriesResult
	MsgInstallSnapshot       = wire.MsgInstallSnapshot
	MsgInstallSnapshotResult = wire.MsgInstallSnapshotResult
	MsgTimeoutNow            = wire.MsgTimeoutNow
)

var (
	EncodeEntry         = wire.EncodeEntry
	DecodeEntry         = wire.DecodeEntry
	EncodeConfiguration = wire.EncodeConfiguration
	DecodeConfiguration = wire.DecodeConfiguration
	EncodeEnvelope      = wire.EncodeEnvelope
	DecodeEnvelope      = wire.DecodeEnvelope
	NewError            = wire.NewError

	errNotLeader  = wire.ErrNotLeader
	errShutdown   = wire.ErrShutdown
	errCannotChg  = wire.ErrCannotChg
	errCatchUp    = wire.ErrCatchUp
	errCompacted  = wire.ErrCompacted
	errNoQuorum   = wire.ErrNoQuorum
	errCanceled   = wire.ErrCanceled
	errNotFoundID = wire.ErrNotFoundID
)

func errBadRole(role ServerRole) *Error { return wire.ErrBadRole(role) }
func errBadID(id uint64) *Error         { return wire.ErrBadID(id) }
