// Package presence ingests technician location updates and writes them
// through to the matching candidate pool.
package presence

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/fixlite/internal/geo"
)

// LocationSink receives validated position updates. Deployments write
// into the shared Redis geo index; in-process directories serve tests.
type LocationSink interface {
	UpdateLocation(ctx context.Context, technicianID uuid.UUID, lat, lng float64) error
}

// Server implements PresenceServer.
type Server struct {
	sink   LocationSink
	logger *zap.Logger
}

// NewServer constructs a server writing into the sink.
func NewServer(sink LocationSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{sink: sink, logger: logger}
}

// StreamLocation consumes position updates until the client closes the
// stream. Malformed ids and out-of-range coordinates are dropped, not
// fatal: one bad update must not tear down a technician's session.
func (s *Server) StreamLocation(stream Presence_StreamLocationServer) error {
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{})
		}
		if err != nil {
			return err
		}
		technicianID, err := uuid.Parse(msg.TechnicianId)
		if err != nil {
			s.logger.Debug("dropping update with bad technician id", zap.String("technician_id", msg.TechnicianId))
			continue
		}
		point := geo.Point{Lat: msg.Lat, Lng: msg.Lng}
		if !point.Valid() {
			s.logger.Debug("dropping update with invalid coordinates", zap.String("technician_id", msg.TechnicianId))
			continue
		}
		if err := s.sink.UpdateLocation(stream.Context(), technicianID, point.Lat, point.Lng); err != nil {
			s.logger.Warn("location update failed", zap.Error(err), zap.String("technician_id", msg.TechnicianId))
		}
	}
}
