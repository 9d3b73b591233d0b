/*
Package clock provides the time and randomness source the consensus
engine is built on top of.

The engine never calls time.Now, time.NewTimer, or math/rand directly —
every timeout, deadline, and randomized election interval is derived from
a Clock. This keeps the engine deterministic under test: a FakeClock lets
a test advance time and control "randomness" one tick at a time, while
SystemClock wires the same interface to the real wall clock for
production use.
*/
package clock
