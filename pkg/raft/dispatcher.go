package raft

import "time"

// eventKind tags the events the dispatcher loop drains from its event
// channel (§4.7, §5): an inbound message, an I/O completion, a
// client-submitted operation, or close; timers are separate select cases
// with no tag of their own. Routing by a single switch on this tag is
// the "tagged sum... dispatched by a single match" pattern used
// throughout this engine's message handling (see pkg/wire.MessageKind).
type eventKind uint8

const (
	evInbound eventKind = iota + 1
	evAppendComplete
	evTruncateComplete
	evSnapshotPersistComplete
	evSnapshotRestoreComplete
	evClientOp
	evClose
)

// event is the single envelope type carried on Server.events. Only the
// fields relevant to kind are populated; this mirrors wire.Envelope's
// tagged-union shape one level up, at the dispatcher rather than the
// wire boundary.
type event struct {
	kind eventKind

	envelope Envelope // evInbound

	err error // any completion kind
	upto uint64 // evAppendComplete: highest index this write covers
	snapshotWritten *pendingSnapshot // evSnapshotPersistComplete
	restoreDone *pendingRestore // evSnapshotRestoreComplete

	clientFn func(*Server) // evClientOp: runs inside the loop

	closeResult chan error // evClose
}

type pendingSnapshot struct {
	lastIndex uint64
	lastTerm  uint64
	trailing  uint64
}

type pendingRestore struct {
	fromLeader uint64
	fromTerm   uint64
	lastIndex  uint64
	lastTerm   uint64
	cfg        Configuration
	cfgIndex   uint64
}

// run is the dispatcher's event loop (§4.7): each event is processed to
// completion before the next is read, so no other goroutine ever
// observes an intermediate state.
func (s *Server) run() {
	defer close(s.done)
	for {
		var roleTimerC <-chan time.Time
		if s.roleTimer != nil {
			roleTimerC = s.roleTimer.C()
		}
		var heartbeatC <-chan time.Time
		if s.role == RoleLeader && s.heartbeatTimer != nil {
			heartbeatC = s.heartbeatTimer.C()
		}
		var transferC <-chan time.Time
		if s.transferTimer != nil {
			transferC = s.transferTimer.C()
		}

		select {
		case ev := <-s.events:
			if s.handleEvent(ev) {
				return
			}
		case <-roleTimerC:
			s.handleRoleTimeout()
		case <-heartbeatC:
			s.handleHeartbeatTimeout()
		case <-transferC:
			s.handleTransferTimeout()
		}
	}
}

// handleEvent processes one event and reports whether the loop should
// exit (true only for evClose).
func (s *Server) handleEvent(ev event) bool {
	switch ev.kind {
	case evInbound:
		s.handleEnvelope(ev.envelope)
	case evAppendComplete:
		s.handleAppendComplete(ev.upto, ev.err)
	case evTruncateComplete:
		s.handleTruncateComplete(ev.err)
	case evSnapshotPersistComplete:
		s.handleSnapshotPersistComplete(ev.snapshotWritten, ev.err)
	case evSnapshotRestoreComplete:
		s.handleSnapshotRestoreComplete(ev.restoreDone, ev.err)
	case evClientOp:
		ev.clientFn(s)
	case evClose:
		s.handleClose(ev.closeResult)
		return true
	}
	return false
}

// handleEnvelope routes one inbound RPC to its role-specific handler,
// after universally applying the higher-term rule (§2: "update term if
// needed → invoke role-specific handler").
func (s *Server) handleEnvelope(env Envelope) {
	if s.errored {
		return
	}
	if term := env.Term(); term > s.currentTerm {
		s.stepDownToTerm(term)
	}
	switch env.Kind {
	case MsgRequestVote:
		s.handleRequestVote(env)
	case MsgRequestVoteResult:
		s.handleRequestVoteResult(env)
	case MsgAppendEntries:
		s.handleAppendEntries(env)
	case MsgAppendEntriesResult:
		s.handleAppendEntriesResult(env)
	case MsgInstallSnapshot:
		s.handleInstallSnapshot(env)
	case MsgInstallSnapshotResult:
		s.handleInstallSnapshotResult(env)
	case MsgTimeoutNow:
		s.handleTimeoutNow(env)
	}
}

func (s *Server) handleRoleTimeout() {
	if s.errored {
		return
	}
	switch s.role {
	case RoleFollower, RoleCandidate:
		s.startElection()
	}
}

func (s *Server) handleHeartbeatTimeout() {
	if s.role != RoleLeader {
		return
	}
	s.sendHeartbeats()
	s.checkCatchUpTimeout()
	s.heartbeatTimer.Reset(s.cfg.HeartbeatInterval)
}

func (s *Server) handleTransferTimeout() {
	s.abortTransfer(errCanceled)
}

func (s *Server) handleClose(result chan error) {
	if s.closed {
		result <- nil
		return
	}
	s.closed = true
	s.requests.cancelAll(errCanceled)
	if s.transferReq != nil {
		s.transferReq.complete(Result{Err: errCanceled})
		s.transferReq = nil
	}
	if s.roleTimer != nil {
		s.roleTimer.Stop()
	}
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	if s.transferTimer != nil {
		s.transferTimer.Stop()
	}
	_ = s.transport.Close()
	s.backendRaw.Close(func(err error) {
		result <- err
	})
}

// send transmits env to address via the transport, logging (not
// retrying) failures; AppendEntries/InstallSnapshot retries happen
// naturally on the next heartbeat or replication attempt instead of at
// the transport layer.
func (s *Server) send(address string, env Envelope) {
	s.transport.Send(address, env, func(err error) {
		if err != nil {
			s.logger.Debug().Err(err).Str("address", address).Str("kind", env.Kind.String()).Msg("send failed")
		}
	})
}

func (s *Server) addressOf(id uint64) (string, bool) {
	srv, ok := s.configuration.Find(id)
	if !ok {
		return "", false
	}
	return srv.Address, true
}
