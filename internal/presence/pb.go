package presence

import "google.golang.org/grpc"

// TechnicianLocation is one streamed position update.
type TechnicianLocation struct {
	TechnicianId string
	Lat          float64
	Lng          float64
	Accuracy     float64
	Ts           int64
}

// Ack closes the stream.
type Ack struct{}

// PresenceServer defines the gRPC contract.
type PresenceServer interface {
	StreamLocation(Presence_StreamLocationServer) error
}

// RegisterPresenceServer registers the service implementation.
func RegisterPresenceServer(s *grpc.Server, srv PresenceServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "presence.Presence",
		HandlerType: (*PresenceServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamLocation",
			Handler:       _Presence_StreamLocation_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// Presence_StreamLocationServer is the bidi stream interface.
type Presence_StreamLocationServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*TechnicianLocation, error)
}

func _Presence_StreamLocation_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PresenceServer).StreamLocation(&presenceStreamServer{ServerStream: stream})
}

type presenceStreamServer struct {
	grpc.ServerStream
}

func (s *presenceStreamServer) SendAndClose(*Ack) error { return nil }

func (s *presenceStreamServer) Recv() (*TechnicianLocation, error) {
	msg := new(TechnicianLocation)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
