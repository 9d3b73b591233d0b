package raft

// addMember appends a brand new server to the configuration as a Spare
// (§4.5: new servers join non-voting and are promoted explicitly). It is
// the leader-only implementation behind the client Add call.
func (s *Server) addMember(id uint64, address string, req *Request) {
	if !s.isLeader() {
		req.complete(Result{Err: errNotLeader})
		return
	}
	if _, ok := s.configuration.Find(id); ok {
		req.complete(Result{Err: errCannotChg})
		return
	}
	if s.changeInFlight {
		req.complete(Result{Err: errCannotChg})
		return
	}
	newCfg := s.configuration.WithServer(Server{ID: id, Address: address, Role: Spare})
	s.beginConfigurationChange(newCfg, req)
}

// assignMember changes an existing server's role (§4.5). Promoting a
// non-Voter straight to Voter first runs a catch-up sequence so the new
// Voter is not immediately a liability to quorum availability; every
// other transition (including demotions) takes effect immediately.
func (s *Server) assignMember(id uint64, role ServerRole, req *Request) {
	if !s.isLeader() {
		req.complete(Result{Err: errNotLeader})
		return
	}
	srv, ok := s.configuration.Find(id)
	if !ok {
		req.complete(Result{Err: errNotFoundID})
		return
	}
	if s.changeInFlight {
		req.complete(Result{Err: errCannotChg})
		return
	}
	if srv.Role == role {
		req.complete(Result{Err: errBadRole(srv.Role)})
		return
	}
	if role != Voter || srv.Role == Voter {
		newCfg := s.configuration.WithServer(Server{ID: id, Address: srv.Address, Role: role})
		s.beginConfigurationChange(newCfg, req)
		return
	}

	// Promotion to Voter: start (or restart) a catch-up round instead of
	// appending immediately.
	s.changeInFlight = true
	s.promoteeID = id
	s.promoteeRole = role
	s.promoteeAddr = srv.Address
	s.roundNumber = 1
	s.roundIndex = s.log.LastIndex()
	s.roundStart = s.clock.Now()
	s.changeReq = req

	if p := s.progress[id]; p != nil {
		s.replicateTo(id, srv.Address)
	}
}

// removeMember appends a configuration without id (§4.5). A leader that
// removes itself steps down once the change commits (onConfigurationApplied).
func (s *Server) removeMember(id uint64, req *Request) {
	if !s.isLeader() {
		req.complete(Result{Err: errNotLeader})
		return
	}
	if _, ok := s.configuration.Find(id); !ok {
		req.complete(Result{Err: errNotFoundID})
		return
	}
	if s.changeInFlight {
		req.complete(Result{Err: errCannotChg})
		return
	}
	newCfg := s.configuration.WithoutServer(id)
	s.beginConfigurationChange(newCfg, req)
}

// beginConfigurationChange appends newCfg as a log entry, taking effect
// immediately in s.configuration and s.progress (§4.5: "upon append, not
// commit"), and registers req against the entry's index so it resolves
// once the entry is durably committed.
func (s *Server) beginConfigurationChange(newCfg Configuration, req *Request) {
	payload, err := EncodeConfiguration(newCfg)
	if err != nil {
		req.complete(Result{Err: err})
		return
	}
	index := s.log.LastIndex() + 1
	entry := Entry{Term: s.currentTerm, Index: index, Kind: EntryConfiguration, Payload: payload}

	s.changeInFlight = true
	s.configuration = newCfg
	s.configIndex = index
	s.progress.reconcile(newCfg, s.id, s.log.LastIndex())

	s.log.Append([]Entry{entry})
	s.log.Backend().Append([]Entry{entry}, func(err error) {
		s.post(event{kind: evAppendComplete, upto: entry.Index, err: err})
	})

	req.Kind = RequestConfigChange
	s.requests.register(index, req)

	s.sendHeartbeats()
}

// maybeContinueCatchUp is called after every successful AppendEntries ack
// while a promotion catch-up round is outstanding for id. A round
// succeeds once the promotee's match_index reaches the index that was
// current when the round began.
func (s *Server) maybeContinueCatchUp(id uint64, p *Progress) {
	if !s.changeInFlight || s.promoteeID != id || s.promoteeID == 0 {
		return
	}
	if p.MatchIndex < s.roundIndex {
		return
	}

	srv, ok := s.configuration.Find(id)
	if !ok {
		s.failCatchUp(errNotFoundID)
		return
	}
	newCfg := s.configuration.WithServer(Server{ID: id, Address: srv.Address, Role: s.promoteeRole})
	req := s.changeReq
	s.promoteeID = 0
	s.promoteeRole = 0
	s.promoteeAddr = ""
	s.changeReq = nil
	s.changeInFlight = false
	s.beginConfigurationChange(newCfg, req)
}

// checkCatchUpTimeout is polled on every heartbeat tick; it advances to
// the next catch-up round, or fails the promotion once CatchUpRoundsMax
// rounds have elapsed without the promotee catching up (§4.5).
func (s *Server) checkCatchUpTimeout() {
	if !s.changeInFlight || s.promoteeID == 0 {
		return
	}
	if s.clock.Now().Sub(s.roundStart) < s.cfg.ElectionTimeoutMax {
		return
	}
	if s.roundNumber >= s.cfg.CatchUpRoundsMax {
		s.failCatchUp(errCatchUp)
		return
	}
	s.roundNumber++
	s.roundIndex = s.log.LastIndex()
	s.roundStart = s.clock.Now()
}

func (s *Server) failCatchUp(err error) {
	if s.changeReq != nil {
		s.changeReq.complete(Result{Err: err})
	}
	s.changeReq = nil
	s.promoteeID = 0
	s.promoteeRole = 0
	s.promoteeAddr = ""
	s.changeInFlight = false
}

// onConfigurationApplied runs when a configuration log entry commits: it
// releases the single-change-in-flight lock and, if this server removed
// itself as a Voter, steps down (§4.5).
func (s *Server) onConfigurationApplied(cfg Configuration, index uint64) {
	s.changeInFlight = false

	if !s.isLeader() {
		return
	}
	if srv, ok := cfg.Find(s.id); !ok || srv.Role != Voter {
		s.becomeFollower(s.currentTerm, 0)
	}
}
