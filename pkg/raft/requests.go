package raft

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind distinguishes the client-facing operations that bind a
// request record to an index or a peer (§3 "Request records").
type RequestKind uint8

const (
	RequestApply RequestKind = iota + 1
	RequestBarrier
	RequestTransfer
	RequestConfigChange
)

// Result is delivered exactly once to a request's Done channel: on
// commit+apply (Apply/Barrier), on success/timeout (Transfer), or on
// cancellation (Err set to Canceled or NotLeader).
type Result struct {
	Values []any
	Err    error
}

// Request is one outstanding client call, created on acceptance and
// destroyed on the terms described in §3.
type Request struct {
	ID        uuid.UUID
	Kind      RequestKind
	Index     uint64 // apply/barrier: commit index this request waits on
	NumValues int    // apply: number of entries batched in this request

	TargetID uint64 // transfer: chosen or requested transferee (0 = unresolved)
	Deadline time.Time

	Done chan Result
}

func newRequest(kind RequestKind) *Request {
	return &Request{
		ID:   uuid.New(),
		Kind: kind,
		Done: make(chan Result, 1),
	}
}

// complete delivers res and is safe to call at most once per request;
// the buffered channel means it never blocks the dispatcher goroutine.
func (r *Request) complete(res Result) {
	select {
	case r.Done <- res:
	default:
	}
}

// requestTable tracks in-flight apply/barrier requests by the commit
// index they are waiting on. Multiple requests can share an index only
// in the degenerate case of a zero-entry barrier racing itself, which
// the caller avoids by construction.
type requestTable struct {
	byIndex map[uint64]*Request
}

func newRequestTable() *requestTable {
	return &requestTable{byIndex: make(map[uint64]*Request)}
}

func (t *requestTable) register(index uint64, req *Request) {
	req.Index = index
	t.byIndex[index] = req
}

// take removes and returns the request waiting on index, if any.
func (t *requestTable) take(index uint64) (*Request, bool) {
	req, ok := t.byIndex[index]
	if ok {
		delete(t.byIndex, index)
	}
	return req, ok
}

// cancelAll completes every outstanding request with err and empties the
// table; used on close and on leadership loss (§5, §7).
func (t *requestTable) cancelAll(err error) {
	for idx, req := range t.byIndex {
		req.complete(Result{Err: err})
		delete(t.byIndex, idx)
	}
}
