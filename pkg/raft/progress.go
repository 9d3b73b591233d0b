package raft

import "time"

// ProgressState is the replication mode a leader tracks per peer (§3).
type ProgressState uint8

const (
	// ProgressProbe is the conservative mode: NextIndex is not advanced
	// past what was sent until the peer replies, used right after becoming
	// leader or after a rejection, until the peer's actual match point is
	// known.
	ProgressProbe ProgressState = iota + 1
	// ProgressPipeline speculatively advances NextIndex ahead of
	// MatchIndex so multiple AppendEntries can be in flight.
	ProgressPipeline
	// ProgressSnapshot means an InstallSnapshot is in flight or pending;
	// no AppendEntries are sent for this peer until it completes.
	ProgressSnapshot
)

func (s ProgressState) String() string {
	switch s {
	case ProgressProbe:
		return "probe"
	case ProgressPipeline:
		return "pipeline"
	case ProgressSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Progress is a leader's replication bookkeeping for a single peer (§3).
// Invariant: MatchIndex < NextIndex.
type Progress struct {
	NextIndex     uint64
	MatchIndex    uint64
	State         ProgressState
	RecentRecv    bool
	LastContact   time.Time
	SnapshotIndex uint64
}

// newProgress initializes Progress for a peer right after this server
// becomes leader, per §4.3: "next_index = last_index + 1, match_index =
// 0, state=Probe".
func newProgress(lastIndex uint64) *Progress {
	return &Progress{
		NextIndex: lastIndex + 1,
		State:     ProgressProbe,
	}
}

// optimisticNextIndex advances NextIndex past the entries just sent,
// used in Pipeline state to let further sends proceed without waiting
// for the reply.
func (p *Progress) optimisticNextIndex(lastSent uint64) {
	if lastSent >= p.NextIndex {
		p.NextIndex = lastSent + 1
	}
}

// handleAck folds a successful AppendEntries reply into Progress (§4.3).
func (p *Progress) handleAck(lastLogIndex uint64) {
	if lastLogIndex > p.MatchIndex {
		p.MatchIndex = lastLogIndex
	}
	p.NextIndex = p.MatchIndex + 1
	if p.State == ProgressProbe {
		p.State = ProgressPipeline
	}
	p.RecentRecv = true
}

// handleReject folds a rejected AppendEntries reply into Progress,
// decrementing NextIndex using the peer's own hint, bounded below at 1.
func (p *Progress) handleReject(hint uint64) {
	next := hint + 1
	if next < 1 {
		next = 1
	}
	if next < p.NextIndex {
		p.NextIndex = next
	} else if p.NextIndex > 1 {
		p.NextIndex--
	}
	p.State = ProgressProbe
}

// progressTable is the leader's per-peer Progress set, keyed by server
// id, covering every other server in the current configuration
// regardless of role (Standby/Spare still receive entries, §4.3).
type progressTable map[uint64]*Progress

func newProgressTable(cfg Configuration, localID, lastIndex uint64) progressTable {
	t := make(progressTable, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		if srv.ID == localID {
			continue
		}
		t[srv.ID] = newProgress(lastIndex)
	}
	return t
}

// reconcile adds Progress entries for servers newly present in cfg and
// drops ones no longer present, called whenever a configuration entry is
// appended while leader (§4.5: configuration changes take effect upon
// append, not commit).
func (t progressTable) reconcile(cfg Configuration, localID, lastIndex uint64) {
	want := make(map[uint64]bool, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		if srv.ID == localID {
			continue
		}
		want[srv.ID] = true
		if _, ok := t[srv.ID]; !ok {
			t[srv.ID] = newProgress(lastIndex)
		}
	}
	for id := range t {
		if !want[id] {
			delete(t, id)
		}
	}
}

// matchIndexes returns the MatchIndex of every voter id in voterIDs,
// including the local server's own match (which equals lastIndex since
// the leader's own log is always up to date with itself).
func (t progressTable) matchIndexes(voterIDs []uint64, localID, localMatch uint64) []uint64 {
	out := make([]uint64, 0, len(voterIDs))
	for _, id := range voterIDs {
		if id == localID {
			out = append(out, localMatch)
			continue
		}
		if p, ok := t[id]; ok {
			out = append(out, p.MatchIndex)
		} else {
			out = append(out, 0)
		}
	}
	return out
}
