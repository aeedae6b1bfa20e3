package presence_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/example/fixlite/internal/presence"
)

type recordingSink struct {
	mu      sync.Mutex
	updates map[uuid.UUID][2]float64
}

func (s *recordingSink) UpdateLocation(_ context.Context, technicianID uuid.UUID, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[uuid.UUID][2]float64)
	}
	s.updates[technicianID] = [2]float64{lat, lng}
	return nil
}

type scriptedStream struct {
	grpc.ServerStream
	msgs   []*presence.TechnicianLocation
	closed bool
}

func (s *scriptedStream) Context() context.Context { return context.Background() }

func (s *scriptedStream) SendAndClose(*presence.Ack) error {
	s.closed = true
	return nil
}

func (s *scriptedStream) Recv() (*presence.TechnicianLocation, error) {
	if len(s.msgs) == 0 {
		return nil, io.EOF
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

func TestStreamLocationWritesThrough(t *testing.T) {
	sink := &recordingSink{}
	srv := presence.NewServer(sink, nil)
	tech := uuid.New()

	stream := &scriptedStream{msgs: []*presence.TechnicianLocation{
		{TechnicianId: tech.String(), Lat: 48.85, Lng: 2.35},
		{TechnicianId: tech.String(), Lat: 48.86, Lng: 2.36},
	}}

	require.NoError(t, srv.StreamLocation(stream))
	require.True(t, stream.closed)
	require.Equal(t, [2]float64{48.86, 2.36}, sink.updates[tech])
}

func TestStreamLocationDropsBadUpdates(t *testing.T) {
	sink := &recordingSink{}
	srv := presence.NewServer(sink, nil)
	tech := uuid.New()

	stream := &scriptedStream{msgs: []*presence.TechnicianLocation{
		{TechnicianId: "not-a-uuid", Lat: 48.85, Lng: 2.35},
		{TechnicianId: tech.String(), Lat: 95, Lng: 2.35},
		{TechnicianId: tech.String(), Lat: 45.76, Lng: 4.83},
	}}

	require.NoError(t, srv.StreamLocation(stream))
	require.Len(t, sink.updates, 1)
	require.Equal(t, [2]float64{45.76, 4.83}, sink.updates[tech])
}
