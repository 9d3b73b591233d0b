package raft

// Stats is a point-in-time snapshot of a Server's engine state, used by
// metrics collection and diagnostics. It is read out through the
// dispatcher loop like any other operation, so it never races with the
// goroutine that owns this state.
type Stats struct {
	ID           uint64
	Role         Role
	LeaderID     uint64
	Term         uint64
	LastLogIndex uint64
	CommitIndex  uint64
	AppliedIndex uint64
	NumVoters    int
	NumPeers     int
}

// Stats blocks until the dispatcher loop hands back a consistent
// snapshot of engine state.
func (s *Server) Stats() Stats {
	res := make(chan Stats, 1)
	s.post(event{kind: evClientOp, clientFn: func(s *Server) {
		res <- Stats{
			ID:           s.id,
			Role:         s.role,
			LeaderID:     s.leaderID,
			Term:         s.currentTerm,
			LastLogIndex: s.log.LastIndex(),
			CommitIndex:  s.commitIndex,
			AppliedIndex: s.appliedIndex,
			NumVoters:    len(s.configuration.Voters()),
			NumPeers:     len(s.configuration.Servers) - 1,
		}
	}})
	select {
	case st := <-res:
		return st
	case <-s.done:
		return Stats{}
	}
}
