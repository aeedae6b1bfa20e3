package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fixlite/internal/admin"
	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/repository"
)

func TestGetDashboard(t *testing.T) {
	interventions := repository.NewMemoryInterventionRepository()
	users := repository.NewMemoryUserDirectory()
	payments := repository.NewMemoryPaymentRepository()
	svc := admin.New(interventions, users, payments)

	_, err := users.Insert(context.Background(), domain.User{ID: uuid.New(), Role: domain.RoleUser, Rating: 4})
	require.NoError(t, err)
	_, err = users.Insert(context.Background(), domain.User{ID: uuid.New(), Role: domain.RoleTechnician, Rating: 5})
	require.NoError(t, err)

	_, err = interventions.Create(context.Background(), domain.Intervention{ID: uuid.New(), Status: domain.StatusCompleted})
	require.NoError(t, err)
	_, err = interventions.Create(context.Background(), domain.Intervention{ID: uuid.New(), Status: domain.StatusCompleted})
	require.NoError(t, err)
	_, err = interventions.Create(context.Background(), domain.Intervention{ID: uuid.New(), Status: domain.StatusPending})
	require.NoError(t, err)

	now := time.Unix(0, 0).UTC()
	_, err = payments.Create(context.Background(), domain.PaymentTransaction{
		ID: uuid.New(), SessionID: "cs_paid", Status: domain.PaymentPaid,
		AmountCents: 12000, CommissionCents: 1200, TechnicianCents: 10800, CreatedAt: now,
	})
	require.NoError(t, err)
	_, err = payments.Create(context.Background(), domain.PaymentTransaction{
		ID: uuid.New(), SessionID: "cs_pending", Status: domain.PaymentPending,
		AmountCents: 5000, CommissionCents: 500, TechnicianCents: 4500, CreatedAt: now,
	})
	require.NoError(t, err)

	dash, err := svc.GetDashboard(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 1, dash.TotalUsers)
	require.Equal(t, 1, dash.TotalTechnicians)
	require.Equal(t, 3, dash.TotalInterventions)
	require.Equal(t, 2, dash.CompletedInterventions)
	require.Equal(t, 1, dash.PendingInterventions)
	require.InDelta(t, 66.67, dash.CompletionRate, 0.001)
	// pending transactions do not count as revenue
	require.Equal(t, int64(1200), dash.TotalRevenueCents)
	require.InDelta(t, 4.5, dash.AverageRating, 0.001)

	_, err = svc.GetDashboard(context.Background(), domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestListingsRequireAdmin(t *testing.T) {
	svc := admin.New(repository.NewMemoryInterventionRepository(), repository.NewMemoryUserDirectory(), repository.NewMemoryPaymentRepository())

	_, err := svc.ListUsers(context.Background(), domain.RoleTechnician, nil, 0, 10)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ListInterventions(context.Background(), domain.RoleUser, nil, 0, 10)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ListPayments(context.Background(), domain.RoleUser, 0, 10)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	err = svc.SetUserActive(context.Background(), domain.RoleUser, uuid.New(), false)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSetUserActive(t *testing.T) {
	users := repository.NewMemoryUserDirectory()
	svc := admin.New(repository.NewMemoryInterventionRepository(), users, repository.NewMemoryPaymentRepository())

	tech, err := users.Insert(context.Background(), domain.User{ID: uuid.New(), Role: domain.RoleTechnician, Available: true, Active: true})
	require.NoError(t, err)

	require.NoError(t, svc.SetUserActive(context.Background(), domain.RoleAdmin, tech.ID, false))

	got, err := users.GetByID(context.Background(), tech.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	// deactivated technicians drop out of the candidate pool
	pool, err := users.AvailableTechnicians(context.Background())
	require.NoError(t, err)
	require.Empty(t, pool)

	require.ErrorIs(t, svc.SetUserActive(context.Background(), domain.RoleAdmin, uuid.New(), false), domain.ErrNotFound)
}
