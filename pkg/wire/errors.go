package wire

import "fmt"

// Code is one of the error codes surfaced across the engine's external
// boundary (§6). Client-facing errors are always a *Error wrapping one of
// these rather than a bare string, so callers can switch on Code instead
// of matching error text.
type Code uint8

const (
	CodeNone Code = iota
	CodeNotLeader
	CodeNotFound
	CodeBadID
	CodeBadRole
	CodeCannotChange
	CodeShutdown
	CodeIOError
	CodeNoMem
	CodeMalformed
	CodeCorrupt
	CodeCanceled
	CodeNoConnection
	CodeNoSpace
	CodeCompactedRange
	CodeCatchUpFailed
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeNotLeader:
		return "not_leader"
	case CodeNotFound:
		return "not_found"
	case CodeBadID:
		return "bad_id"
	case CodeBadRole:
		return "bad_role"
	case CodeCannotChange:
		return "cannot_change"
	case CodeShutdown:
		return "shutdown"
	case CodeIOError:
		return "io_error"
	case CodeNoMem:
		return "no_mem"
	case CodeMalformed:
		return "malformed"
	case CodeCorrupt:
		return "corrupt"
	case CodeCanceled:
		return "canceled"
	case CodeNoConnection:
		return "no_connection"
	case CodeNoSpace:
		return "no_space"
	case CodeCompactedRange:
		return "compacted_range"
	case CodeCatchUpFailed:
		return "catchup_failed"
	default:
		return "unknown"
	}
}

// Error is a structured engine error: a Code plus optional fields, so
// that e.g. a BadRole rejection carries the offending role as a field
// instead of embedding it in free text (Design Notes, "already <role>").
type Error struct {
	Code   Code
	Msg    string
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

// Is reports whether err is an *Error with the given code, so callers can
// write errors.Is(err, wire.NewError(wire.CodeNotLeader, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an *Error from a code, a message, and optional
// key/value field pairs.
func NewError(code Code, msg string, fields ...any) *Error {
	e := &Error{Code: code, Msg: msg}
	if len(fields) > 0 {
		e.Fields = make(map[string]any, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			k, _ := fields[i].(string)
			e.Fields[k] = fields[i+1]
		}
	}
	return e
}

// Sentinel errors shared across the engine's external boundary.
var (
	ErrNotLeader  = NewError(CodeNotLeader, "local server is not the leader")
	ErrShutdown   = NewError(CodeShutdown, "engine is closed")
	ErrCannotChg  = NewError(CodeCannotChange, "a configuration change is already in flight")
	ErrCatchUp    = NewError(CodeCatchUpFailed, "promotee failed to catch up")
	ErrCompacted  = NewError(CodeCompactedRange, "index is in the compacted prefix")
	ErrNoQuorum   = NewError(CodeNotFound, "no eligible voter for transfer")
	ErrCanceled   = NewError(CodeCanceled, "request canceled")
	ErrNotFoundID = NewError(CodeNotFound, "server id not found in configuration")
)

// ErrBadRole reports that a server already has the role an assign call
// requested, carrying the current role as a field rather than free text
// (Design Notes: "already <role>").
func ErrBadRole(role ServerRole) *Error {
	return NewError(CodeBadRole, "server already has the requested role", "role", role)
}

// ErrBadID reports an invalid or unknown server id.
func ErrBadID(id uint64) *Error {
	return NewError(CodeBadID, "invalid server id", "id", id)
}
