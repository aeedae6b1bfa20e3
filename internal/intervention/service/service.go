package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/access"
	"github.com/example/fixlite/internal/intervention/domain"
)

// Service owns the intervention state machine. Every transition is gated on
// role or ownership and published as an event on success.
type Service struct {
	repo       domain.InterventionRepository
	events     domain.EventPublisher
	clock      domain.Clock
	idempotent domain.IdempotencyRepository
}

// New constructs a Service with the required collaborators. A nil
// idempotency repository disables creation replay.
func New(repo domain.InterventionRepository, events domain.EventPublisher, clock domain.Clock, idem domain.IdempotencyRepository) *Service {
	return &Service{repo: repo, events: events, clock: clock, idempotent: idem}
}

// CreateRequest carries the payload for a new intervention.
type CreateRequest struct {
	Title          string
	Description    string
	Category       domain.Category
	Mode           domain.ServiceMode
	Urgency        domain.Urgency
	BudgetMinCents int64
	BudgetMaxCents int64
	Address        string
	Latitude       *float64
	Longitude      *float64
}

func (r CreateRequest) validate() error {
	switch r.Category {
	case domain.CategoryPhone, domain.CategoryComputer:
	default:
		return fmt.Errorf("category %q: %w", r.Category, domain.ErrInvalidArgument)
	}
	switch r.Mode {
	case domain.ModeRemote, domain.ModeOnsite:
	default:
		return fmt.Errorf("service mode %q: %w", r.Mode, domain.ErrInvalidArgument)
	}
	switch r.Urgency {
	case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
	default:
		return fmt.Errorf("urgency %q: %w", r.Urgency, domain.ErrInvalidArgument)
	}
	if r.Title == "" {
		return fmt.Errorf("title required: %w", domain.ErrInvalidArgument)
	}
	if r.BudgetMinCents < 0 || r.BudgetMaxCents < r.BudgetMinCents {
		return fmt.Errorf("budget range: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// Create opens a new pending intervention. Only ordinary users may create.
// A non-empty key makes the call replayable: a retried request with the
// same key returns the intervention the first attempt produced. Keys are
// scoped per caller so two users sharing a key never see each other's
// records.
func (s *Service) Create(ctx context.Context, callerID uuid.UUID, role domain.Role, key string, req CreateRequest) (domain.Intervention, error) {
	if role != domain.RoleUser {
		return domain.Intervention{}, fmt.Errorf("only users may create interventions: %w", domain.ErrUnauthorized)
	}
	if err := req.validate(); err != nil {
		return domain.Intervention{}, err
	}

	if key != "" {
		key = callerID.String() + ":" + key
	}
	if key != "" && s.idempotent != nil {
		if id, ok, err := s.idempotent.GetID(ctx, key); err == nil && ok {
			return s.repo.GetByID(ctx, id)
		}
	}

	iv := domain.Intervention{
		ID:             uuid.New(),
		UserID:         callerID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Mode:           req.Mode,
		Urgency:        req.Urgency,
		BudgetMinCents: req.BudgetMinCents,
		BudgetMaxCents: req.BudgetMaxCents,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Status:         domain.StatusPending,
		CreatedAt:      s.clock.Now(),
		Version:        1,
	}

	created, err := s.repo.Create(ctx, iv)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("create intervention: %w", err)
	}

	if key != "" && s.idempotent != nil {
		_ = s.idempotent.PutID(ctx, key, created.ID)
	}

	_ = s.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: created.ID,
		Type:           domain.EventInterventionCreated,
		Payload:        map[string]any{"user_id": created.UserID.String(), "urgency": string(created.Urgency)},
	})

	return created, nil
}

// Claim assigns a pending intervention to the calling technician. The
// underlying write is conditional on the record still being pending, so
// exactly one of N concurrent claimants wins; losers see
// ErrPreconditionFailed, including the winner retrying its own claim.
func (s *Service) Claim(ctx context.Context, interventionID, callerID uuid.UUID, role domain.Role) (domain.Intervention, error) {
	if role != domain.RoleTechnician {
		return domain.Intervention{}, fmt.Errorf("only technicians may claim interventions: %w", domain.ErrUnauthorized)
	}

	claimed, err := s.repo.ClaimPending(ctx, interventionID, callerID, s.clock.Now())
	if err != nil {
		return domain.Intervention{}, err
	}

	_ = s.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: claimed.ID,
		Type:           domain.EventInterventionClaimed,
		Payload:        map[string]any{"technician_id": callerID.String()},
	})

	return claimed, nil
}

// UpdateStatus moves an intervention along the transition table. The caller
// must be the owning user or the assigned technician; admins are exempt.
// Transitioning into completed stamps the completion time and fixes the
// final price when one is supplied and none is set yet.
func (s *Service) UpdateStatus(ctx context.Context, interventionID, callerID uuid.UUID, role domain.Role, next domain.InterventionStatus, finalPriceCents *int64) (domain.Intervention, error) {
	iv, err := s.repo.GetByID(ctx, interventionID)
	if err != nil {
		return domain.Intervention{}, err
	}

	if !access.CanAccessIntervention(callerID, role, iv) {
		return domain.Intervention{}, fmt.Errorf("intervention %s: %w", interventionID, domain.ErrForbidden)
	}

	// Assignment is only reachable through Claim; everything else follows
	// the table.
	if next == domain.StatusAssigned || !iv.Status.CanTransitionTo(next) {
		return domain.Intervention{}, fmt.Errorf("%s -> %s: %w", iv.Status, next, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	prev := iv.Status
	iv.Status = next
	switch next {
	case domain.StatusCompleted:
		iv.CompletedAt = &now
		if finalPriceCents != nil && iv.FinalPriceCents == nil {
			if *finalPriceCents < 0 {
				return domain.Intervention{}, fmt.Errorf("final price: %w", domain.ErrInvalidArgument)
			}
			price := *finalPriceCents
			iv.FinalPriceCents = &price
		}
	case domain.StatusCancelled:
		iv.CancelledAt = &now
	}

	updated, err := s.repo.Update(ctx, iv)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("update intervention: %w", err)
	}

	_ = s.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: updated.ID,
		Type:           domain.EventStatusChanged,
		Payload:        map[string]any{"from": string(prev), "to": string(next)},
	})

	return updated, nil
}

// AdminResolve is the administrative escape hatch: it moves the
// intervention to resolved_by_admin from any state, recording resolver and
// timestamp, bypassing the transition table.
func (s *Service) AdminResolve(ctx context.Context, interventionID, adminID uuid.UUID, role domain.Role, resolution string) (domain.Intervention, error) {
	if role != domain.RoleAdmin {
		return domain.Intervention{}, fmt.Errorf("admin role required: %w", domain.ErrUnauthorized)
	}

	iv, err := s.repo.GetByID(ctx, interventionID)
	if err != nil {
		return domain.Intervention{}, err
	}

	now := s.clock.Now()
	iv.Status = domain.StatusResolvedByAdmin
	iv.AdminResolution = &resolution
	iv.ResolvedBy = &adminID
	iv.ResolvedAt = &now

	updated, err := s.repo.Update(ctx, iv)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("resolve intervention: %w", err)
	}

	_ = s.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: updated.ID,
		Type:           domain.EventAdminResolved,
		Payload:        map[string]any{"resolved_by": adminID.String()},
	})

	return updated, nil
}

// Get retrieves an intervention for a caller allowed to see it.
func (s *Service) Get(ctx context.Context, interventionID, callerID uuid.UUID, role domain.Role) (domain.Intervention, error) {
	iv, err := s.repo.GetByID(ctx, interventionID)
	if err != nil {
		return domain.Intervention{}, err
	}
	if !access.CanAccessIntervention(callerID, role, iv) {
		return domain.Intervention{}, fmt.Errorf("intervention %s: %w", interventionID, domain.ErrForbidden)
	}
	return iv, nil
}

// ListFor returns the caller's view of the marketplace: users see their own
// requests, technicians see pending work plus their assignments, admins see
// everything.
func (s *Service) ListFor(ctx context.Context, callerID uuid.UUID, role domain.Role) ([]domain.Intervention, error) {
	switch role {
	case domain.RoleUser:
		return s.repo.ListByUser(ctx, callerID)
	case domain.RoleTechnician:
		return s.repo.ListForTechnician(ctx, callerID)
	case domain.RoleAdmin:
		return s.repo.ListAll(ctx, nil, 0, 0)
	default:
		return nil, fmt.Errorf("role %q: %w", role, domain.ErrUnauthorized)
	}
}
