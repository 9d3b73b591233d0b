package grpctransport

import "fmt"

// frame is the only message type this package ever puts on a gRPC wire:
// an opaque, already-encoded wire.Envelope. rawCodec exists so gRPC does
// no protobuf marshaling of its own — the engine's own little-endian
// encoding (pkg/wire) is the payload, and gRPC supplies only connection
// management, multiplexing, and optional TLS around it.
type frame struct {
	data []byte
}

// rawCodec implements google.golang.org/grpc/encoding.Codec for frame
// values by passing the bytes through unchanged.
type rawCodec struct{}

const rawCodecName = "raftcore-raw"

func (rawCodec) Name() string { return rawCodecName }

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	f, ok := v.(*frame)
	if !ok {
		return nil, fmt.Errorf("grpctransport: rawCodec cannot marshal %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*frame)
	if !ok {
		return fmt.Errorf("grpctransport: rawCodec cannot unmarshal into %T", v)
	}
	f.data = append([]byte(nil), data...)
	return nil
}
