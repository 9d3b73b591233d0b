/*
Package log provides structured logging for raftcore using zerolog.

It wraps zerolog with component- and request-scoped child loggers so that
a single log line can be grepped back to the term, role, peer, or client
request it belongs to, without every call site repeating those fields by
hand.

# Architecture

	┌────────────── LOGGING ──────────────┐
	│  Logger (global, zerolog.Logger)     │
	│    └─ Component("dispatcher")        │
	│         └─ WithTerm / WithRole       │
	│              └─ WithPeer / WithRequest │
	└───────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	dispatchLog := log.Component("dispatcher")
	dispatchLog = log.WithTerm(dispatchLog, server.CurrentTerm())
	dispatchLog = log.WithRole(dispatchLog, "leader")
	dispatchLog.Info().Msg("became leader")

	replLog := log.WithPeer(log.Component("replication"), peerID)
	replLog.Debug().Uint64("next_index", p.NextIndex).Msg("sending append_entries")

# Conventions

Fatal is reserved for startup failures (corrupt on-disk state, a bind
address already in use) where there is no reasonable way to continue;
runtime errors inside the engine are returned as *wire.Error, not logged
and swallowed.
*/
package log
