package raft

import (
	"fmt"
	"reflect"
	"time"

	"github.com/cuemby/raftcore/pkg/clock"
	"github.com/cuemby/raftcore/pkg/config"
	"github.com/cuemby/raftcore/pkg/log"
	"github.com/cuemby/raftcore/pkg/storage"
	"github.com/cuemby/raftcore/pkg/transport"
	"github.com/rs/zerolog"
)

// Role is the server's current position in the Raft role state machine
// (§3).
type Role uint8

const (
	RoleFollower Role = iota + 1
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Options configures a new Server.
type Options struct {
	ID        uint64
	Address   string
	Backend   storage.Backend
	Transport transport.Transport
	FSM       FSM
	Clock     clock.Clock
	Engine    config.Engine
	Logger    zerolog.Logger
}

// Server is one replica of the replicated log (§2, §3). All of its
// fields below the event-loop plumbing are owned exclusively by the
// dispatcher goroutine started by Start; nothing outside pkg/raft
// touches them directly.
type Server struct {
	id      uint64
	address string

	backendRaw storage.Backend
	transport  transport.Transport
	fsm        FSM
	clock      clock.Clock
	cfg        config.Engine
	logger     zerolog.Logger

	log           *Log
	configuration Configuration
	configIndex   uint64 // index of the log entry that introduced `configuration`

	currentTerm uint64
	votedFor    uint64
	commitIndex uint64
	appliedIndex uint64

	role Role

	// Follower / Candidate sub-state.
	leaderID     uint64
	roleTimer    clock.Timer
	votesGranted map[uint64]bool

	// Leader sub-state.
	progress       progressTable
	heartbeatTimer clock.Timer
	requests       *requestTable

	changeInFlight bool
	promoteeID     uint64
	promoteeRole   ServerRole
	promoteeAddr   string
	roundNumber    int
	roundIndex     uint64
	roundStart     time.Time
	changeReq      *Request

	transferReq      *Request
	transferTargetID uint64
	transferTimer    clock.Timer

	snapshotInFlight bool

	errored bool
	closed  bool

	events chan event
	done   chan struct{}
}

// NewServer constructs a Server from its collaborators. Call Start to
// load storage state and begin the event loop.
func NewServer(opts Options) *Server {
	lg := opts.Logger
	if reflect.DeepEqual(lg, zerolog.Logger{}) {
		lg = log.Component("raft")
	}
	return &Server{
		id:         opts.ID,
		address:    opts.Address,
		backendRaw: opts.Backend,
		transport:  opts.Transport,
		fsm:        opts.FSM,
		clock:      opts.Clock,
		cfg:        opts.Engine,
		logger:     log.WithServerID(lg, opts.ID),
		log:        NewLog(opts.Backend),
		requests:   newRequestTable(),
		role:       RoleFollower,
		events:     make(chan event, 256),
		done:       make(chan struct{}),
	}
}

// Start loads durable state from the backend, registers the transport
// receive handler, arms the election timer, and runs the dispatcher loop
// until Close. Start blocks until the loop exits.
func (s *Server) Start() error {
	loaded, err := s.backendRaw.Load()
	if err != nil {
		return fmt.Errorf("raft: load storage state: %w", err)
	}
	s.currentTerm = loaded.CurrentTerm
	s.votedFor = loaded.VotedFor
	if loaded.Snapshot != nil {
		s.log.Reset(loaded.Snapshot.LastIndex, loaded.Snapshot.LastTerm, loaded.Entries)
		s.commitIndex = loaded.Snapshot.LastIndex
		s.appliedIndex = loaded.Snapshot.LastIndex
		s.configuration = loaded.Snapshot.Configuration
		s.configIndex = loaded.Snapshot.ConfigurationIndex
	} else {
		s.log.Reset(0, 0, loaded.Entries)
	}
	s.loadConfigurationFromLog()

	s.transport.SetRecvHandler(func(env Envelope) {
		s.post(event{kind: evInbound, envelope: env})
	})

	s.armRoleTimer()
	s.logger.Info().Str("role", s.role.String()).Uint64("term", s.currentTerm).Msg("server started")

	s.run()
	return nil
}

// loadConfigurationFromLog scans the tail of the log for the most recent
// Configuration entry, in case one was appended after the last snapshot.
func (s *Server) loadConfigurationFromLog() {
	for i := s.log.LastIndex(); i > s.configIndex; i-- {
		e, err := s.log.Get(i)
		if err != nil {
			break
		}
		if e.Kind == EntryConfiguration {
			cfg, err := DecodeConfiguration(e.Payload)
			if err == nil {
				s.configuration = cfg
				s.configIndex = i
			}
			break
		}
	}
}

// post queues an event for the dispatcher loop. Safe to call from any
// goroutine (storage callbacks, transport receive, timers).
func (s *Server) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close stops the dispatcher loop, cancels every outstanding request and
// background operation, and releases the storage backend and transport.
func (s *Server) Close() error {
	res := make(chan error, 1)
	s.post(event{kind: evClose, closeResult: res})
	select {
	case err := <-res:
		return err
	case <-s.done:
		return nil
	}
}

func (s *Server) isLeader() bool { return s.role == RoleLeader }

// markErrored records a fatal storage failure. The engine has no way to
// recover from a durable-write error mid-flight, so it stops participating
// in the cluster (refusing votes and elections) rather than risk acting on
// state it could not persist; the process is expected to be restarted
// against a healthy backend.
func (s *Server) markErrored(err error) {
	if s.errored {
		return
	}
	s.errored = true
	s.logger.Error().Err(err).Msg("storage failure, server stopping participation")
	if s.roleTimer != nil {
		s.roleTimer.Stop()
	}
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	s.requests.cancelAll(err)
}

// quorumSize returns the majority size of the current configuration's
// Voter set.
func (s *Server) quorumSize() int { return s.configuration.Quorum() }

func (s *Server) voterIDs() []uint64 {
	voters := s.configuration.Voters()
	ids := make([]uint64, len(voters))
	for i, v := range voters {
		ids[i] = v.ID
	}
	return ids
}
