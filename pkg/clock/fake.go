package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually-advanced Clock for deterministic tests. Time only
// moves when Advance is called; Random returns a caller-seeded sequence
// that wraps once exhausted.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     []uint64
	seqNext int
	timers  []*fakeTimer
}

// NewFakeClock returns a FakeClock starting at an arbitrary fixed instant.
// seq, if non-empty, is the repeating sequence Random() draws from;
// otherwise Random() returns an incrementing counter.
func NewFakeClock(seq ...uint64) *FakeClock {
	return &FakeClock{
		now: time.Unix(1700000000, 0),
		seq: seq,
	}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) Random() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seq) == 0 {
		f.seqNext++
		return uint64(f.seqNext)
	}
	v := f.seq[f.seqNext%len(f.seq)]
	f.seqNext++
	return v
}

func (f *FakeClock) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{owner: f, fireAt: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the fake clock forward by d, firing any timers whose
// deadline falls within the new interval, in deadline order.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	due := make([]*fakeTimer, 0)
	live := f.timers[:0:0]
	for _, t := range f.timers {
		if t.stopped {
			continue
		}
		if !t.fireAt.After(now) {
			due = append(due, t)
		} else {
			live = append(live, t)
		}
	}
	f.timers = live
	sort.Slice(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })
	f.mu.Unlock()

	for _, t := range due {
		select {
		case t.ch <- now:
		default:
		}
	}
}

type fakeTimer struct {
	owner   *FakeClock
	fireAt  time.Time
	stopped bool
	ch      chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Reset(d time.Duration) {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.stopped = false
	t.fireAt = t.owner.now.Add(d)
	found := false
	for _, existing := range t.owner.timers {
		if existing == t {
			found = true
			break
		}
	}
	if !found {
		t.owner.timers = append(t.owner.timers, t)
	}
}

func (t *fakeTimer) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.stopped = true
}
