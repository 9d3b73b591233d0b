package raft

import "github.com/cuemby/raftcore/pkg/clock"

// armRoleTimer (re)starts the Follower/Candidate election timer with a
// freshly randomized interval (§4.2).
func (s *Server) armRoleTimer() {
	d := clock.RandomizedDuration(s.clock, s.cfg.ElectionTimeoutMin, s.cfg.ElectionTimeoutMax)
	if s.roleTimer == nil {
		s.roleTimer = s.clock.NewTimer(d)
	} else {
		s.roleTimer.Reset(d)
	}
}

// becomeFollower transitions to Follower for the given term, clearing
// candidate/leader sub-state, and re-arms the role timer so the follower
// starts a fresh randomized election deadline.
func (s *Server) becomeFollower(term uint64, leaderID uint64) {
	wasLeader := s.role == RoleLeader
	s.role = RoleFollower
	s.leaderID = leaderID
	s.votesGranted = nil
	if wasLeader {
		s.stopLeading()
	}
	s.armRoleTimer()
}

// stepDownToTerm adopts a higher term observed in an RPC: clears the
// vote, becomes Follower (§3 "Term" invariant).
func (s *Server) stepDownToTerm(term uint64) {
	s.currentTerm = term
	s.votedFor = 0
	if err := s.backendRaw.SetTerm(term); err != nil {
		s.markErrored(err)
		return
	}
	s.becomeFollower(term, 0)
}

// stopLeading tears down leader-only sub-state when stepping down,
// failing every in-flight request with NotLeader (§3 "Request records":
// "destroyed... on leadership loss").
func (s *Server) stopLeading() {
	s.progress = nil
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	s.requests.cancelAll(errNotLeader)
	if s.transferReq != nil {
		s.transferReq.complete(Result{Err: errNotLeader})
		s.transferReq = nil
	}
	s.transferTargetID = 0
	if s.transferTimer != nil {
		s.transferTimer.Stop()
		s.transferTimer = nil
	}
	s.changeInFlight = false
	if s.changeReq != nil {
		s.changeReq.complete(Result{Err: errNotLeader})
		s.changeReq = nil
	}
	s.promoteeID = 0
	s.promoteeRole = 0
	s.promoteeAddr = ""
}

// startElection implements the Follower/Candidate election-timeout
// transition (§4.2): increment term, vote for self, broadcast
// RequestVote to every other Voter.
func (s *Server) startElection() {
	if srv, ok := s.configuration.Find(s.id); ok && srv.Role != Voter {
		s.armRoleTimer()
		return
	}

	s.currentTerm++
	s.votedFor = s.id
	if err := s.backendRaw.SetVote(s.currentTerm, s.id); err != nil {
		s.markErrored(err)
		return
	}
	s.role = RoleCandidate
	s.votesGranted = map[uint64]bool{s.id: true}
	s.armRoleTimer()

	lastIndex := s.log.LastIndex()
	lastTerm := s.log.LastTerm()
	req := &RequestVote{
		Term:         s.currentTerm,
		CandidateID:  s.id,
		LastLogIndex: lastIndex,
		LastLogTerm:  lastTerm,
	}
	s.logger.Info().Uint64("term", s.currentTerm).Msg("starting election")

	for _, srv := range s.configuration.Voters() {
		if srv.ID == s.id {
			continue
		}
		s.send(srv.Address, Envelope{
			Kind:          MsgRequestVote,
			SenderID:      s.id,
			SenderAddress: s.address,
			RequestVote:   req,
		})
	}

	s.checkElectionWon()
}

// handleRequestVote applies the grant rules of §4.2.
func (s *Server) handleRequestVote(env Envelope) {
	req := env.RequestVote
	granted := false
	switch {
	case req.Term < s.currentTerm:
		// deny, stale term
	case s.votedFor != 0 && s.votedFor != req.CandidateID:
		// already voted for someone else this term
	case s.logIsMoreUpToDate(req.LastLogTerm, req.LastLogIndex):
		// our log is more up to date than the candidate's
	default:
		granted = true
	}

	if granted {
		s.votedFor = req.CandidateID
		if err := s.backendRaw.SetVote(s.currentTerm, req.CandidateID); err != nil {
			s.markErrored(err)
			return
		}
		s.armRoleTimer()
	}

	if addr, ok := s.addressOf(req.CandidateID); ok {
		s.send(addr, Envelope{
			Kind:              MsgRequestVoteResult,
			SenderID:          s.id,
			SenderAddress:     s.address,
			RequestVoteResult: &RequestVoteResult{Term: s.currentTerm, Granted: granted},
		})
	}
}

// logIsMoreUpToDate reports whether the local log is strictly ahead of
// (otherTerm, otherIndex), per the Raft "up-to-date" comparison used in
// both vote-granting and transfer-target selection.
func (s *Server) logIsMoreUpToDate(otherTerm, otherIndex uint64) bool {
	lastTerm := s.log.LastTerm()
	lastIndex := s.log.LastIndex()
	if lastTerm != otherTerm {
		return lastTerm > otherTerm
	}
	return lastIndex > otherIndex
}

func (s *Server) handleRequestVoteResult(env Envelope) {
	if s.role != RoleCandidate {
		return
	}
	res := env.RequestVoteResult
	if res.Term != s.currentTerm || !res.Granted {
		return
	}
	s.votesGranted[env.SenderID] = true
	s.checkElectionWon()
}

// checkElectionWon promotes to Leader once a majority of Voters in the
// current term have granted their vote (§4.2).
func (s *Server) checkElectionWon() {
	if s.role != RoleCandidate {
		return
	}
	granted := 0
	for _, srv := range s.configuration.Voters() {
		if s.votesGranted[srv.ID] {
			granted++
		}
	}
	if granted >= s.quorumSize() {
		s.becomeLeader()
	}
}

// becomeLeader transitions Candidate → Leader: initializes Progress for
// every peer and starts the heartbeat timer (§4.3). No no-op entry is
// appended; callers use Barrier when they need a current-term anchor.
func (s *Server) becomeLeader() {
	s.role = RoleLeader
	s.leaderID = s.id
	s.votesGranted = nil
	if s.roleTimer != nil {
		s.roleTimer.Stop()
	}

	s.progress = newProgressTable(s.configuration, s.id, s.log.LastIndex())
	s.heartbeatTimer = s.clock.NewTimer(s.cfg.HeartbeatInterval)

	s.logger.Info().Uint64("term", s.currentTerm).Msg("became leader")
	s.sendHeartbeats()
}

// handleTimeoutNow implements the transfer target's side of leadership
// transfer (§4.8): start an election immediately instead of waiting out
// the normal randomized timeout.
func (s *Server) handleTimeoutNow(env Envelope) {
	if s.role == RoleLeader {
		return
	}
	s.startElection()
}

// beginTransfer starts a leadership transfer to target (or, if target is
// 0, to whichever Voter currently has the highest match_index), per
// §4.8. The request resolves once TimeoutNow is sent, or with an error on
// timeout/cancellation.
func (s *Server) beginTransfer(target uint64, req *Request) {
	if !s.isLeader() {
		req.complete(Result{Err: errNotLeader})
		return
	}
	if s.transferReq != nil {
		req.complete(Result{Err: errCannotChg})
		return
	}
	if target == 0 {
		target = s.pickTransferTarget()
	}
	if target == 0 {
		req.complete(Result{Err: errNoQuorum})
		return
	}
	if _, ok := s.configuration.Find(target); !ok {
		req.complete(Result{Err: errNotFoundID})
		return
	}

	s.transferReq = req
	s.transferTargetID = target
	s.transferTimer = s.clock.NewTimer(s.cfg.TransferTimeout)

	if p := s.progress[target]; p != nil && p.MatchIndex >= s.log.LastIndex() {
		s.sendTimeoutNow(target)
	}
}

func (s *Server) pickTransferTarget() uint64 {
	var best uint64
	var bestMatch uint64
	for _, srv := range s.configuration.Voters() {
		if srv.ID == s.id {
			continue
		}
		p := s.progress[srv.ID]
		if p == nil {
			continue
		}
		if best == 0 || p.MatchIndex > bestMatch {
			best = srv.ID
			bestMatch = p.MatchIndex
		}
	}
	return best
}

func (s *Server) sendTimeoutNow(target uint64) {
	addr, ok := s.addressOf(target)
	if !ok {
		return
	}
	s.send(addr, Envelope{
		Kind:          MsgTimeoutNow,
		SenderID:      s.id,
		SenderAddress: s.address,
		TimeoutNow:    &TimeoutNow{Term: s.currentTerm},
	})
	if s.transferReq != nil {
		s.transferReq.complete(Result{})
		s.transferReq = nil
	}
	if s.transferTimer != nil {
		s.transferTimer.Stop()
		s.transferTimer = nil
	}
	s.transferTargetID = 0
}

// maybeCompleteTransfer is checked after every successful AppendEntries
// ack; once the transfer target catches up to the leader's last index,
// TimeoutNow is sent right away instead of waiting for the next
// heartbeat round.
func (s *Server) maybeCompleteTransfer(id uint64, p *Progress) {
	if s.transferReq == nil || s.transferTargetID != id {
		return
	}
	if p.MatchIndex >= s.log.LastIndex() {
		s.sendTimeoutNow(id)
	}
}

// abortTransfer cancels an in-flight leadership transfer, used when the
// transfer's own timer fires.
func (s *Server) abortTransfer(err error) {
	if s.transferReq == nil {
		return
	}
	s.transferReq.complete(Result{Err: err})
	s.transferReq = nil
	s.transferTargetID = 0
	s.transferTimer = nil
}
