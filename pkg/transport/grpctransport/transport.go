// Package grpctransport is the reference implementation of
// pkg/transport.Transport: one outbound, long-lived client-streaming gRPC
// call per peer address carries that peer's outbound envelopes, and one
// inbound gRPC service accepts whatever peers dial in with. TLS, if
// configured with WithTLS, applies the same tls.Config to the listener
// and to outbound dials.
package grpctransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/cuemby/raftcore/pkg/log"
	"github.com/cuemby/raftcore/pkg/transport"
	"github.com/cuemby/raftcore/pkg/wire"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Option configures a Transport at construction.
type Option func(*Transport)

// WithTLS arms the transport with TLS credentials built from cfg, used
// for both the server and outbound connections.
func WithTLS(cfg *tls.Config) Option {
	return func(t *Transport) { t.tlsConfig = cfg }
}

// WithLogger attaches a structured logger in place of the default
// log.Component("grpctransport") logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) { t.log = logger }
}

// peerLink is the persistent outbound stream used to send to one peer
// address. Streams are created lazily on first Send and kept open across
// calls; a broken stream is recreated on the next Send.
type peerLink struct {
	mu     sync.Mutex
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	addr      string
	tlsConfig *tls.Config
	log       zerolog.Logger

	grpcServer *grpc.Server
	listener   net.Listener

	mu      sync.Mutex
	peers   map[string]*peerLink
	recv    transport.RecvHandler
	closed  bool
}

var _ transport.Transport = (*Transport)(nil)
var _ linkServer = (*Transport)(nil)

// New binds a listener at addr, starts serving inbound streams on it, and
// returns the Transport.
func New(addr string, opts ...Option) (*Transport, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: listen %s: %w", addr, err)
	}
	t := &Transport{
		addr:     lis.Addr().String(),
		listener: lis,
		log:      log.Component("grpctransport"),
		peers:    make(map[string]*peerLink),
	}
	for _, opt := range opts {
		opt(t)
	}

	var creds credentials.TransportCredentials
	if t.tlsConfig != nil {
		creds = credentials.NewTLS(t.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}
	t.grpcServer = grpc.NewServer(
		grpc.Creds(creds),
		grpc.ForceServerCodec(rawCodec{}),
	)
	t.grpcServer.RegisterService(&linkServiceDesc, t)

	go func() {
		if err := t.grpcServer.Serve(lis); err != nil {
			t.log.Debug().Err(err).Msg("grpc server stopped serving")
		}
	}()

	return t, nil
}

// LocalAddress implements transport.Transport.
func (t *Transport) LocalAddress() string { return t.addr }

// SetRecvHandler implements transport.Transport.
func (t *Transport) SetRecvHandler(handler transport.RecvHandler) {
	t.mu.Lock()
	t.recv = handler
	t.mu.Unlock()
}

// handleInboundStream implements linkServer: it is invoked once per
// incoming connection from a peer and runs for that connection's
// lifetime.
func (t *Transport) handleInboundStream(stream grpc.ServerStream) error {
	return drainStream(stream, func(data []byte) error {
		env, err := wire.DecodeEnvelope(data)
		if err != nil {
			t.log.Warn().Err(err).Msg("dropping malformed inbound envelope")
			return nil
		}
		t.mu.Lock()
		handler := t.recv
		t.mu.Unlock()
		if handler != nil {
			handler(env)
		}
		return nil
	})
}

// Send implements transport.Transport.
func (t *Transport) Send(address string, env wire.Envelope, cb transport.SendCallback) {
	data, err := wire.EncodeEnvelope(env)
	if err != nil {
		go cb(err)
		return
	}
	link, err := t.linkFor(address)
	if err != nil {
		go cb(err)
		return
	}
	go func() {
		link.mu.Lock()
		defer link.mu.Unlock()
		if link.stream == nil {
			s, err := t.dial(address, link)
			if err != nil {
				cb(err)
				return
			}
			link.stream = s
		}
		if err := link.stream.SendMsg(&frame{data: data}); err != nil {
			link.stream = nil
			cb(err)
			return
		}
		cb(nil)
	}()
}

func (t *Transport) linkFor(address string) (*peerLink, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, wire.ErrShutdown
	}
	l, ok := t.peers[address]
	if !ok {
		l = &peerLink{}
		t.peers[address] = l
	}
	return l, nil
}

func (t *Transport) dial(address string, link *peerLink) (grpc.ClientStream, error) {
	if link.conn == nil {
		var creds credentials.TransportCredentials
		if t.tlsConfig != nil {
			creds = credentials.NewTLS(t.tlsConfig)
		} else {
			creds = insecure.NewCredentials()
		}
		conn, err := grpc.NewClient(address,
			grpc.WithTransportCredentials(creds),
			grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
		)
		if err != nil {
			return nil, fmt.Errorf("grpctransport: dial %s: %w", address, err)
		}
		link.conn = conn
	}
	desc := &grpc.StreamDesc{StreamName: linkStreamName, ClientStreams: true}
	return link.conn.NewStream(context.Background(), desc, linkStreamMethod)
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	peers := t.peers
	t.peers = nil
	t.mu.Unlock()

	for _, link := range peers {
		link.mu.Lock()
		if link.conn != nil {
			_ = link.conn.Close()
		}
		link.mu.Unlock()
	}
	t.grpcServer.GracefulStop()
	return nil
}
