// Package admin aggregates marketplace metrics and listings for operators.
package admin

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// Dashboard is the operator metrics snapshot.
type Dashboard struct {
	TotalUsers             int     `json:"total_users"`
	TotalTechnicians       int     `json:"total_technicians"`
	TotalInterventions     int     `json:"total_interventions"`
	CompletedInterventions int     `json:"completed_interventions"`
	PendingInterventions   int     `json:"pending_interventions"`
	CompletionRate         float64 `json:"completion_rate"`
	TotalRevenueCents      int64   `json:"total_revenue_cents"`
	AverageRating          float64 `json:"average_rating"`
}

// Service gathers admin-only views over the stores.
type Service struct {
	interventions domain.InterventionRepository
	users         domain.UserDirectory
	payments      domain.PaymentRepository
}

// New constructs the admin Service.
func New(interventions domain.InterventionRepository, users domain.UserDirectory, payments domain.PaymentRepository) *Service {
	return &Service{interventions: interventions, users: users, payments: payments}
}

func requireAdmin(role domain.Role) error {
	if role != domain.RoleAdmin {
		return fmt.Errorf("admin role required: %w", domain.ErrUnauthorized)
	}
	return nil
}

// GetDashboard computes the metrics snapshot. Revenue is the commission sum
// over paid transactions.
func (s *Service) GetDashboard(ctx context.Context, role domain.Role) (Dashboard, error) {
	if err := requireAdmin(role); err != nil {
		return Dashboard{}, err
	}

	totalUsers, err := s.users.CountByRole(ctx, domain.RoleUser)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count users: %w", err)
	}
	totalTechs, err := s.users.CountByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count technicians: %w", err)
	}
	total, err := s.interventions.Count(ctx, nil)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count interventions: %w", err)
	}
	completedStatus := domain.StatusCompleted
	completed, err := s.interventions.Count(ctx, &completedStatus)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count completed: %w", err)
	}
	pendingStatus := domain.StatusPending
	pending, err := s.interventions.Count(ctx, &pendingStatus)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count pending: %w", err)
	}

	paid, err := s.payments.ListByStatus(ctx, domain.PaymentPaid)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list paid transactions: %w", err)
	}
	var revenue int64
	for _, tx := range paid {
		revenue += tx.CommissionCents
	}

	avgRating, err := s.users.AverageRating(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("average rating: %w", err)
	}

	var rate float64
	if total > 0 {
		rate = math.Round(float64(completed)/float64(total)*10000) / 100
	}

	return Dashboard{
		TotalUsers:             totalUsers,
		TotalTechnicians:       totalTechs,
		TotalInterventions:     total,
		CompletedInterventions: completed,
		PendingInterventions:   pending,
		CompletionRate:         rate,
		TotalRevenueCents:      revenue,
		AverageRating:          math.Round(avgRating*100) / 100,
	}, nil
}

// ListUsers pages through participants.
func (s *Service) ListUsers(ctx context.Context, role domain.Role, filter *domain.Role, skip, limit int) ([]domain.User, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	return s.users.List(ctx, filter, skip, limit)
}

// ListInterventions pages through interventions, optionally by status.
func (s *Service) ListInterventions(ctx context.Context, role domain.Role, status *domain.InterventionStatus, skip, limit int) ([]domain.Intervention, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	return s.interventions.ListAll(ctx, status, skip, limit)
}

// ListPayments pages through payment transactions.
func (s *Service) ListPayments(ctx context.Context, role domain.Role, skip, limit int) ([]domain.PaymentTransaction, error) {
	if err := requireAdmin(role); err != nil {
		return nil, err
	}
	return s.payments.List(ctx, skip, limit)
}

// SetUserActive flips a participant's soft status flag.
func (s *Service) SetUserActive(ctx context.Context, role domain.Role, userID uuid.UUID, active bool) error {
	if err := requireAdmin(role); err != nil {
		return err
	}
	return s.users.SetActive(ctx, userID, active)
}
