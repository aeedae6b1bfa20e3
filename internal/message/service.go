// Package message is the append-only per-intervention chat log.
package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/access"
	"github.com/example/fixlite/internal/intervention/domain"
)

// Service gates the message log on intervention access.
type Service struct {
	messages      domain.MessageRepository
	interventions domain.InterventionRepository
	clock         domain.Clock
}

// New constructs a message Service.
func New(messages domain.MessageRepository, interventions domain.InterventionRepository, clock domain.Clock) *Service {
	return &Service{messages: messages, interventions: interventions, clock: clock}
}

// Send appends a message. Senders must be a party to the intervention: the
// owning user or the assigned technician. Admins read but do not write.
func (s *Service) Send(ctx context.Context, interventionID, senderID uuid.UUID, role domain.Role, content string) (domain.Message, error) {
	if content == "" {
		return domain.Message{}, fmt.Errorf("empty message: %w", domain.ErrInvalidArgument)
	}
	iv, err := s.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return domain.Message{}, err
	}
	isParty := senderID == iv.UserID || (iv.TechnicianID != nil && *iv.TechnicianID == senderID)
	if !isParty {
		return domain.Message{}, fmt.Errorf("intervention %s: %w", interventionID, domain.ErrForbidden)
	}

	msg := domain.Message{
		ID:             uuid.New(),
		InterventionID: interventionID,
		SenderID:       senderID,
		SenderRole:     role,
		Content:        content,
		CreatedAt:      s.clock.Now(),
	}
	return s.messages.Append(ctx, msg)
}

// List returns the intervention's messages in creation order for any caller
// passing the access predicate.
func (s *Service) List(ctx context.Context, interventionID, callerID uuid.UUID, role domain.Role) ([]domain.Message, error) {
	iv, err := s.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessIntervention(callerID, role, iv) {
		return nil, fmt.Errorf("intervention %s: %w", interventionID, domain.ErrForbidden)
	}
	return s.messages.ListByIntervention(ctx, interventionID)
}
