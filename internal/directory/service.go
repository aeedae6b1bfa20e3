// Package directory covers participant-facing directory operations that sit
// outside the intervention lifecycle.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// Service wraps the user directory with role checks.
type Service struct {
	users domain.UserDirectory
}

// New constructs the directory Service.
func New(users domain.UserDirectory) *Service {
	return &Service{users: users}
}

// SetAvailability toggles the calling technician's availability flag.
func (s *Service) SetAvailability(ctx context.Context, callerID uuid.UUID, role domain.Role, available bool) error {
	if role != domain.RoleTechnician {
		return fmt.Errorf("technician role required: %w", domain.ErrUnauthorized)
	}
	return s.users.SetAvailability(ctx, callerID, available)
}

// Get returns a participant profile.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}
