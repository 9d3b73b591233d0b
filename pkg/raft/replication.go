package raft

// sendHeartbeats drives one round of replication: every peer gets an
// AppendEntries (possibly empty, i.e. a heartbeat) or, if its NextIndex
// has fallen into the compacted prefix, an InstallSnapshot (§4.3, §4.4).
func (s *Server) sendHeartbeats() {
	for _, srv := range s.configuration.Servers {
		if srv.ID == s.id {
			continue
		}
		s.replicateTo(srv.ID, srv.Address)
	}
}

// replicateTo sends one round of replication traffic to a single peer.
// Called both from the heartbeat tick and, for pipelining, immediately
// after a successful AppendEntriesResult.
func (s *Server) replicateTo(id uint64, address string) {
	p := s.progress[id]
	if p == nil {
		return
	}
	if p.State == ProgressSnapshot {
		return
	}

	prevIndex := p.NextIndex - 1
	prevTerm, err := s.log.TermAt(prevIndex)
	if err == errCompacted {
		s.beginSnapshotInstall(id, address)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Uint64("peer_id", id).Msg("replication term lookup failed")
		return
	}

	entries, _ := s.log.Slice(p.NextIndex, s.cfg.MaxAppendEntryBytes)
	if len(entries) > s.cfg.MaxAppendEntries {
		entries = entries[:s.cfg.MaxAppendEntries]
	}

	if len(entries) > 0 && p.State == ProgressPipeline {
		p.optimisticNextIndex(entries[len(entries)-1].Index)
	}

	s.send(address, Envelope{
		Kind:          MsgAppendEntries,
		SenderID:      s.id,
		SenderAddress: s.address,
		AppendEntries: &AppendEntries{
			Term:         s.currentTerm,
			LeaderID:     s.id,
			PrevLogIndex: prevIndex,
			PrevLogTerm:  prevTerm,
			Entries:      entries,
			LeaderCommit: s.commitIndex,
		},
	})
}

// handleAppendEntriesResult folds a follower's reply into its Progress
// and advances commit_index when a new majority match is reached (§4.3,
// §5.4.2).
func (s *Server) handleAppendEntriesResult(env Envelope) {
	if s.role != RoleLeader {
		return
	}
	res := env.AppendEntriesResult
	if res.Term < s.currentTerm {
		return
	}
	p := s.progress[env.SenderID]
	if p == nil {
		return
	}
	p.LastContact = s.clock.Now()

	if res.Success {
		p.handleAck(res.LastLogIndex)
		s.advanceCommitIndex()
		s.maybeContinueCatchUp(env.SenderID, p)
		if more, _ := s.log.Slice(p.NextIndex, 1); len(more) > 0 {
			if addr, ok := s.addressOf(env.SenderID); ok {
				s.replicateTo(env.SenderID, addr)
			}
		}
		s.maybeCompleteTransfer(env.SenderID, p)
		return
	}

	p.handleReject(res.LastLogIndex)
	if addr, ok := s.addressOf(env.SenderID); ok {
		s.replicateTo(env.SenderID, addr)
	}
}

// advanceCommitIndex implements the Leader commit rule of §5.4.2: commit
// index only ever advances to an index whose entry was written in the
// current term, computed as the highest index held by a quorum of
// Voters' match_index.
func (s *Server) advanceCommitIndex() {
	matches := s.progress.matchIndexes(s.voterIDs(), s.id, s.log.LastIndex())
	n := majorityIndex(matches, s.quorumSize())
	if n <= s.commitIndex {
		return
	}
	term, err := s.log.TermAt(n)
	if err != nil || term != s.currentTerm {
		return
	}
	s.commitIndex = n
	s.applyCommitted()
}

// majorityIndex returns the highest index held by at least quorum of the
// given match indexes.
func majorityIndex(matches []uint64, quorum int) uint64 {
	if len(matches) < quorum {
		return 0
	}
	sorted := append([]uint64(nil), matches...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)-quorum]
}

type applyOutcome struct {
	value any
	err   error
}

// applyCommitted applies every newly committed entry to the FSM (or the
// appropriate internal handler for Barrier/Configuration entries) in
// order, then resolves any client request waiting on that index (§5.3,
// §3 "Request records").
func (s *Server) applyCommitted() {
	var pending []applyOutcome
	for idx := s.appliedIndex + 1; idx <= s.commitIndex; idx++ {
		e, err := s.log.Get(idx)
		if err != nil {
			s.markErrored(err)
			return
		}
		switch e.Kind {
		case EntryCommand:
			val, err := s.fsm.Apply(e.Payload)
			pending = append(pending, applyOutcome{value: val, err: err})
		case EntryBarrier:
			pending = append(pending, applyOutcome{})
		case EntryConfiguration:
			cfg, err := DecodeConfiguration(e.Payload)
			if err == nil {
				s.onConfigurationApplied(cfg, idx)
			}
			pending = append(pending, applyOutcome{})
		}
		s.appliedIndex = idx

		if req, ok := s.requests.take(idx); ok {
			n := req.NumValues
			if n <= 0 || n > len(pending) {
				n = len(pending)
			}
			batch := pending[len(pending)-n:]
			res := Result{Values: make([]any, 0, len(batch))}
			for _, o := range batch {
				if o.err != nil {
					res.Err = o.err
					res.Values = nil
					break
				}
				res.Values = append(res.Values, o.value)
			}
			req.complete(res)
		}
	}
	s.maybeTakeSnapshot()
}

// handleAppendComplete folds the local durability watermark for a Leader's
// own log writes back into Progress, the same way a follower's ack does,
// then re-evaluates commit (§5, "local server's match_index").
func (s *Server) handleAppendComplete(upto uint64, err error) {
	if err != nil {
		s.markErrored(err)
		return
	}
	if s.role != RoleLeader {
		return
	}
	s.advanceCommitIndex()
}

func (s *Server) handleTruncateComplete(err error) {
	if err != nil {
		s.markErrored(err)
	}
}

// handleAppendEntries is the follower-side protocol of §4.4: reject stale
// terms, accept the leader and reset the election deadline, run the
// consistency check against (prev_log_index, prev_log_term), then append
// any new entries and advance commit_index.
func (s *Server) handleAppendEntries(env Envelope) {
	req := env.AppendEntries
	if req.Term < s.currentTerm {
		s.replyAppendEntries(env, false, s.log.LastIndex())
		return
	}

	s.role = RoleFollower
	s.leaderID = req.LeaderID
	s.armRoleTimer()

	if req.PrevLogIndex > 0 {
		localTerm, err := s.log.TermAt(req.PrevLogIndex)
		if err == errCompacted {
			snapIndex, _ := s.log.SnapshotLast()
			if req.PrevLogIndex < snapIndex {
				s.replyAppendEntries(env, false, s.log.LastIndex())
				return
			}
		} else if err != nil || localTerm != req.PrevLogTerm {
			s.replyAppendEntries(env, false, s.log.LastIndex())
			return
		}
	}

	nextIndex := req.PrevLogIndex + 1
	for _, e := range req.Entries {
		existingTerm, err := s.log.TermAt(e.Index)
		if err == nil && e.Index <= s.log.LastIndex() {
			if existingTerm == e.Term {
				nextIndex = e.Index + 1
				continue
			}
			if e.Index <= s.commitIndex {
				// never truncate a committed entry (§4.4 Log Matching).
				continue
			}
			s.log.TruncateSuffix(e.Index)
			s.log.Backend().Truncate(e.Index, func(err error) {
				s.post(event{kind: evTruncateComplete, err: err})
			})
		}
		s.log.Append([]Entry{e})
		s.log.Backend().Append([]Entry{e}, func(err error) {
			s.post(event{kind: evAppendComplete, upto: e.Index, err: err})
		})
		nextIndex = e.Index + 1
	}

	lastNew := nextIndex - 1
	if req.LeaderCommit > s.commitIndex {
		newCommit := req.LeaderCommit
		if lastNew < newCommit {
			newCommit = lastNew
		}
		if newCommit > s.commitIndex {
			s.commitIndex = newCommit
			s.applyCommitted()
		}
	}

	s.replyAppendEntries(env, true, s.log.LastIndex())
}

func (s *Server) replyAppendEntries(env Envelope, success bool, lastLogIndex uint64) {
	addr := env.SenderAddress
	if addr == "" {
		var ok bool
		addr, ok = s.addressOf(env.SenderID)
		if !ok {
			return
		}
	}
	s.send(addr, Envelope{
		Kind:          MsgAppendEntriesResult,
		SenderID:      s.id,
		SenderAddress: s.address,
		AppendEntriesResult: &AppendEntriesResult{
			Term:         s.currentTerm,
			Success:      success,
			LastLogIndex: lastLogIndex,
		},
	})
}
