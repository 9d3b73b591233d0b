package transport

import "github.com/cuemby/raftcore/pkg/wire"

// SendCallback reports the outcome of a Send. It is invoked exactly once,
// on a goroutine the engine does not control; the engine turns it into a
// completion event on its own dispatcher rather than acting on it inline
// (§5: "the only suspension point").
type SendCallback func(err error)

// RecvHandler is how a Transport delivers an inbound envelope to the
// engine. The engine posts the envelope onto its dispatcher and returns
// immediately; RecvHandler must not block on engine state.
type RecvHandler func(env wire.Envelope)

// Transport is the engine-facing network contract (§6). One Transport
// instance serves one local server id; peers are addressed by the
// address string carried on Server records in the current configuration,
// not by any connection the Transport happens to already hold open.
type Transport interface {
	// LocalAddress is the address this transport listens on, as it
	// should appear in this server's own Server record.
	LocalAddress() string

	// Send transmits env to the peer at address, invoking cb exactly
	// once when the send completes or definitively fails. Send does not
	// wait for any application-level response; replies arrive later as
	// their own inbound envelope through SetRecvHandler.
	Send(address string, env wire.Envelope, cb SendCallback)

	// SetRecvHandler registers the callback invoked for every inbound
	// envelope addressed to this transport. Only one handler is active
	// at a time; the engine installs it once at startup.
	SetRecvHandler(handler RecvHandler)

	// Close releases listening sockets and any open peer connections.
	// Pending sends are completed with an error rather than silently
	// dropped.
	Close() error
}
