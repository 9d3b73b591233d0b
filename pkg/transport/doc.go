/*
Package transport defines the network contract the consensus engine
(pkg/raft) is built against: address-addressed message send/receive, with
every send completing asynchronously via a callback posted back onto the
engine's own dispatcher.

pkg/transport/grpctransport provides the reference implementation: a
single client-streaming gRPC service per peer connection carrying the
engine's own versioned, little-endian message envelope (defined in
pkg/wire) as opaque stream frames — gRPC supplies connection management,
keep-alives, and optional TLS, while the bytes on the wire are the
engine's, not protobuf's.
*/
package transport
