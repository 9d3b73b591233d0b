package clock

import (
	"math/rand"
	"time"
)

// Timer is a cancelable, one-shot alarm. Reset rearms it; Stop cancels it.
// C delivers the fire time.
type Timer interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// Clock is the engine's only source of time and randomness, so that every
// timeout and every randomized election interval can be driven
// deterministically in tests.
type Clock interface {
	// Now returns the current time. Only deltas between two Now() calls
	// are meaningful; the engine never persists or compares against wall
	// clock time from a different process.
	Now() time.Time

	// Random returns the next value from the clock's random source. The
	// engine uses it to pick randomized election timeouts.
	Random() uint64

	// NewTimer starts a timer that fires once after d.
	NewTimer(d time.Duration) Timer
}

// SystemClock is the production Clock, backed by the real wall clock and
// a process-seeded PRNG.
type SystemClock struct {
	rnd *rand.Rand
}

// NewSystemClock returns a SystemClock seeded from the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (c *SystemClock) Now() time.Time { return time.Now() }

func (c *SystemClock) Random() uint64 { return c.rnd.Uint64() }

func (c *SystemClock) NewTimer(d time.Duration) Timer {
	t := time.NewTimer(d)
	return &systemTimer{t: t}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) C() <-chan time.Time { return s.t.C }

func (s *systemTimer) Reset(d time.Duration) {
	if !s.t.Stop() {
		select {
		case <-s.t.C:
		default:
		}
	}
	s.t.Reset(d)
}

func (s *systemTimer) Stop() { s.t.Stop() }

// RandomizedDuration picks a uniformly distributed duration in [min, max)
// using c's random source. It is how the engine computes election
// deadlines (§4.2: "randomized(min,max)").
func RandomizedDuration(c Clock, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := uint64(max - min)
	return min + time.Duration(c.Random()%span)
}
