package raft

import (
	"bytes"

	"github.com/cuemby/raftcore/pkg/storage"
)

// maybeTakeSnapshot starts a snapshot once the applied log has grown
// SnapshotThreshold entries past the last one, unless a snapshot is
// already being taken (§4.6).
func (s *Server) maybeTakeSnapshot() {
	if s.snapshotInFlight {
		return
	}
	last, _ := s.log.SnapshotLast()
	if int(s.appliedIndex-last) < s.cfg.SnapshotThreshold {
		return
	}
	s.takeSnapshot()
}

// takeSnapshot dumps the FSM's state as of appliedIndex and hands it to
// the backend; the log prefix is only discarded once that write
// completes (handleSnapshotPersistComplete), keeping the compacted
// entries available to a slow follower in the meantime.
func (s *Server) takeSnapshot() {
	index := s.appliedIndex
	term, err := s.log.TermAt(index)
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot: term lookup failed")
		return
	}
	var buf bytes.Buffer
	if err := s.fsm.Snapshot(&buf); err != nil {
		s.logger.Error().Err(err).Msg("snapshot: fsm dump failed")
		return
	}
	s.snapshotInFlight = true
	cfg := s.configuration
	cfgIndex := s.configIndex
	trailing := s.cfg.SnapshotTrailing
	backend := s.log.Backend()

	go func() {
		snap := storage.Snapshot{
			LastIndex:          index,
			LastTerm:           term,
			Configuration:      cfg,
			ConfigurationIndex: cfgIndex,
			Payload:            buf.Bytes(),
		}
		backend.SnapshotPut(trailing, snap, func(err error) {
			s.post(event{
				kind:            evSnapshotPersistComplete,
				err:             err,
				snapshotWritten: &pendingSnapshot{lastIndex: index, lastTerm: term, trailing: trailing},
			})
		})
	}()
}

func (s *Server) handleSnapshotPersistComplete(snap *pendingSnapshot, err error) {
	s.snapshotInFlight = false
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot: persist failed")
		return
	}
	if snap == nil {
		return
	}
	trailing := snap.trailing
	keepFrom := snap.lastIndex
	if trailing < keepFrom {
		keepFrom -= trailing
	} else {
		keepFrom = 0
	}
	if keepFrom > 0 {
		if term, err := s.log.TermAt(keepFrom); err == nil {
			s.log.TruncatePrefix(keepFrom, term)
		}
	}
}

// beginSnapshotInstall is the leader side of §4.6: a peer's NextIndex has
// fallen into the compacted prefix, so the current snapshot is fetched
// and shipped to it instead of log entries.
func (s *Server) beginSnapshotInstall(id uint64, address string) {
	p := s.progress[id]
	if p == nil || p.State == ProgressSnapshot {
		return
	}
	p.State = ProgressSnapshot

	backend := s.log.Backend()
	term := s.currentTerm
	cfg := s.configuration
	cfgIndex := s.configIndex

	backend.SnapshotGet(func(snap *storage.Snapshot, err error) {
		s.post(event{kind: evClientOp, clientFn: func(s *Server) {
			if err != nil || snap == nil {
				s.logger.Error().Err(err).Uint64("peer_id", id).Msg("snapshot: fetch for install failed")
				if pp := s.progress[id]; pp != nil {
					pp.State = ProgressProbe
				}
				return
			}
			pp := s.progress[id]
			if pp == nil {
				return
			}
			pp.SnapshotIndex = snap.LastIndex
			s.send(address, Envelope{
				Kind:          MsgInstallSnapshot,
				SenderID:      s.id,
				SenderAddress: s.address,
				InstallSnapshot: &InstallSnapshot{
					Term:               term,
					LeaderID:           s.id,
					LastIndex:          snap.LastIndex,
					LastTerm:           snap.LastTerm,
					Configuration:      cfg,
					ConfigurationIndex: cfgIndex,
					Payload:            snap.Payload,
				},
			})
		}})
	})
}

// handleInstallSnapshotResult folds the leader-side reply: a final
// (non-InProgress) success sets MatchIndex to the snapshot's last index
// and resumes in Probe from the entry after it; a failure goes back to
// Probe so the next heartbeat retries from scratch (§4.6).
func (s *Server) handleInstallSnapshotResult(env Envelope) {
	if s.role != RoleLeader {
		return
	}
	res := env.InstallSnapshotResult
	p := s.progress[env.SenderID]
	if p == nil {
		return
	}
	if res.InProgress {
		return
	}
	if !res.Success {
		p.State = ProgressProbe
		return
	}
	p.MatchIndex = p.SnapshotIndex
	p.NextIndex = p.SnapshotIndex + 1
	p.State = ProgressProbe
	p.RecentRecv = true
	s.advanceCommitIndex()
}

// handleInstallSnapshot is the follower side: reject stale terms, no-op
// success if the local snapshot is already at least as new, otherwise
// persist and restore in the background and reply twice (an immediate
// InProgress ack, then a final reply once Restore completes) so the
// leader doesn't re-send while the (potentially large) restore is
// underway (§4.6).
func (s *Server) handleInstallSnapshot(env Envelope) {
	req := env.InstallSnapshot
	if req.Term < s.currentTerm {
		s.replyInstallSnapshot(env, false, false)
		return
	}

	s.role = RoleFollower
	s.leaderID = req.LeaderID
	s.armRoleTimer()

	localLast, _ := s.log.SnapshotLast()
	if req.LastIndex <= localLast {
		s.replyInstallSnapshot(env, true, false)
		return
	}

	s.replyInstallSnapshot(env, true, true)

	backend := s.log.Backend()
	restore := &pendingRestore{
		fromLeader: req.LeaderID,
		fromTerm:   req.Term,
		lastIndex:  req.LastIndex,
		lastTerm:   req.LastTerm,
		cfg:        req.Configuration,
		cfgIndex:   req.ConfigurationIndex,
	}
	payload := req.Payload
	fsm := s.fsm

	s.log.Reset(req.LastIndex, req.LastTerm, nil)

	go func() {
		err := fsm.Restore(bytes.NewReader(payload))
		if err == nil {
			snap := storage.Snapshot{
				LastIndex:          req.LastIndex,
				LastTerm:           req.LastTerm,
				Configuration:      req.Configuration,
				ConfigurationIndex: req.ConfigurationIndex,
				Payload:            payload,
			}
			backend.SnapshotPut(0, snap, func(putErr error) {
				s.post(event{kind: evSnapshotRestoreComplete, restoreDone: restore, err: putErr})
			})
			return
		}
		s.post(event{kind: evSnapshotRestoreComplete, restoreDone: restore, err: err})
	}()
}

func (s *Server) handleSnapshotRestoreComplete(restore *pendingRestore, err error) {
	if restore == nil {
		return
	}
	addr, ok := s.addressOf(restore.fromLeader)
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot: restore failed")
		if ok {
			s.send(addr, Envelope{
				Kind:          MsgInstallSnapshotResult,
				SenderID:      s.id,
				SenderAddress: s.address,
				InstallSnapshotResult: &InstallSnapshotResult{
					Term: s.currentTerm, Success: false, InProgress: false,
				},
			})
		}
		return
	}

	s.commitIndex = restore.lastIndex
	s.appliedIndex = restore.lastIndex
	s.configuration = restore.cfg
	s.configIndex = restore.cfgIndex

	if ok {
		s.send(addr, Envelope{
			Kind:          MsgInstallSnapshotResult,
			SenderID:      s.id,
			SenderAddress: s.address,
			InstallSnapshotResult: &InstallSnapshotResult{
				Term: s.currentTerm, Success: true, InProgress: false,
			},
		})
	}
}

func (s *Server) replyInstallSnapshot(env Envelope, success, inProgress bool) {
	addr := env.SenderAddress
	if addr == "" {
		var ok bool
		addr, ok = s.addressOf(env.SenderID)
		if !ok {
			return
		}
	}
	s.send(addr, Envelope{
		Kind:          MsgInstallSnapshotResult,
		SenderID:      s.id,
		SenderAddress: s.address,
		InstallSnapshotResult: &InstallSnapshotResult{
			Term: s.currentTerm, Success: success, InProgress: inProgress,
		},
	})
}
