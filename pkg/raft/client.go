package raft

// Apply submits one or more command buffers to be replicated and applied
// to the FSM, in order, as a single batch (§5.1, §5.3). It fails fast
// with NotLeader if this server is not currently the leader. The
// returned Request's Done channel receives one Result once the whole
// batch is committed and applied; Result.Values holds the FSM's Apply
// return value for each buffer in order.
func (s *Server) Apply(bufs [][]byte) *Request {
	req := newRequest(RequestApply)
	req.NumValues = len(bufs)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		s.applyCommands(bufs, req)
	}})
	return req
}

func (s *Server) applyCommands(bufs [][]byte, req *Request) {
	if !s.isLeader() {
		req.complete(Result{Err: errNotLeader})
		return
	}
	if len(bufs) == 0 {
		req.complete(Result{})
		return
	}
	entries := make([]Entry, len(bufs))
	index := s.log.LastIndex()
	for i, payload := range bufs {
		index++
		entries[i] = Entry{Term: s.currentTerm, Index: index, Kind: EntryCommand, Payload: payload}
	}
	s.log.Append(entries)
	s.log.Backend().Append(entries, func(err error) {
		s.post(event{kind: evAppendComplete, upto: index, err: err})
	})
	s.requests.register(index, req)
	s.sendHeartbeats()
}

// Barrier submits a no-op entry and resolves once every prior Apply on
// this leader has been committed and applied, giving callers a
// read-your-writes checkpoint (§5.1 "Barrier").
func (s *Server) Barrier() *Request {
	req := newRequest(RequestBarrier)
	req.NumValues = 1
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		if !s.isLeader() {
			req.complete(Result{Err: errNotLeader})
			return
		}
		index := s.log.LastIndex() + 1
		entry := Entry{Term: s.currentTerm, Index: index, Kind: EntryBarrier}
		s.log.Append([]Entry{entry})
		s.log.Backend().Append([]Entry{entry}, func(err error) {
			s.post(event{kind: evAppendComplete, upto: index, err: err})
		})
		s.requests.register(index, req)
		s.sendHeartbeats()
	}})
	return req
}

// Add registers a brand-new server as a non-voting Spare (§4.5). Promote
// it with Assign once it has caught up.
func (s *Server) Add(id uint64, address string) *Request {
	req := newRequest(RequestConfigChange)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		s.addMember(id, address, req)
	}})
	return req
}

// Assign changes an existing server's membership role (§4.5). Promoting
// a non-Voter to Voter runs a catch-up sequence before it takes effect.
func (s *Server) Assign(id uint64, role ServerRole) *Request {
	req := newRequest(RequestConfigChange)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		s.assignMember(id, role, req)
	}})
	return req
}

// Remove drops a server from the configuration (§4.5). Removing the
// current leader causes it to step down once the change commits.
func (s *Server) Remove(id uint64) *Request {
	req := newRequest(RequestConfigChange)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		s.removeMember(id, req)
	}})
	return req
}

// Transfer hands leadership to target (or, if target is 0, to whichever
// Voter is most caught up) as soon as it is caught up (§4.8).
func (s *Server) Transfer(target uint64) *Request {
	req := newRequest(RequestTransfer)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		s.beginTransfer(target, req)
	}})
	return req
}
