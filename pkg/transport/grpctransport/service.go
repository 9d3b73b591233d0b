package grpctransport

import (
	"io"

	"google.golang.org/grpc"
)

// linkServiceName and linkStreamMethod name the single hand-rolled
// client-streaming RPC this package exposes: a peer dials in once and
// streams frames for as long as the transport is open. There is no
// .proto file behind this — the service is described directly as a
// grpc.ServiceDesc because the payload is already-encoded bytes, not a
// protobuf message.
const (
	linkServiceName = "raftcore.transport.Link"
	linkStreamName  = "Stream"
	linkStreamMethod = "/" + linkServiceName + "/" + linkStreamName
)

// linkServer is the narrow interface the generated-by-hand ServiceDesc
// dispatches to.
type linkServer interface {
	handleInboundStream(stream grpc.ServerStream) error
}

func linkStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(linkServer).handleInboundStream(stream)
}

var linkServiceDesc = grpc.ServiceDesc{
	ServiceName: linkServiceName,
	HandlerType: (*linkServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    linkStreamName,
			Handler:       linkStreamHandler,
			ClientStreams: true,
		},
	},
	Metadata: "raftcore/transport/grpctransport/link.proto",
}

// drainStream reads frames from stream until the client half-closes,
// invoking onFrame for each one, then acks with an empty frame.
func drainStream(stream grpc.ServerStream, onFrame func(data []byte) error) error {
	for {
		f := new(frame)
		if err := stream.RecvMsg(f); err != nil {
			if err == io.EOF {
				return stream.SendMsg(&frame{})
			}
			return err
		}
		if err := onFrame(f.data); err != nil {
			return err
		}
	}
}
