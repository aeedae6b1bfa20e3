package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/repository"
)

func TestClaimPendingAssignsOnce(t *testing.T) {
	repo := repository.NewMemoryInterventionRepository()
	iv, err := repo.Create(context.Background(), domain.Intervention{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: domain.StatusPending,
	})
	require.NoError(t, err)

	techA := uuid.New()
	techB := uuid.New()
	at := time.Unix(1000, 0).UTC()

	claimed, err := repo.ClaimPending(context.Background(), iv.ID, techA, at)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAssigned, claimed.Status)
	require.NotNil(t, claimed.TechnicianID)
	require.Equal(t, techA, *claimed.TechnicianID)
	require.NotNil(t, claimed.AssignedAt)
	require.Equal(t, at, *claimed.AssignedAt)

	_, err = repo.ClaimPending(context.Background(), iv.ID, techB, at)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)

	// re-claiming your own assignment fails the same way
	_, err = repo.ClaimPending(context.Background(), iv.ID, techA, at)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestClaimPendingUnknownIntervention(t *testing.T) {
	repo := repository.NewMemoryInterventionRepository()
	_, err := repo.ClaimPending(context.Background(), uuid.New(), uuid.New(), time.Now())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListForTechnicianSeesPendingAndOwn(t *testing.T) {
	repo := repository.NewMemoryInterventionRepository()
	tech := uuid.New()
	other := uuid.New()
	base := time.Unix(0, 0).UTC()

	pending, _ := repo.Create(context.Background(), domain.Intervention{ID: uuid.New(), UserID: uuid.New(), Status: domain.StatusPending, CreatedAt: base})
	mine, _ := repo.Create(context.Background(), domain.Intervention{ID: uuid.New(), UserID: uuid.New(), Status: domain.StatusAssigned, TechnicianID: &tech, CreatedAt: base.Add(time.Minute)})
	_, _ = repo.Create(context.Background(), domain.Intervention{ID: uuid.New(), UserID: uuid.New(), Status: domain.StatusAssigned, TechnicianID: &other, CreatedAt: base.Add(2 * time.Minute)})

	got, err := repo.ListForTechnician(context.Background(), tech)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// newest first
	require.Equal(t, mine.ID, got[0].ID)
	require.Equal(t, pending.ID, got[1].ID)
}

func TestListAllPaging(t *testing.T) {
	repo := repository.NewMemoryInterventionRepository()
	base := time.Unix(0, 0).UTC()
	for i := 0; i < 5; i++ {
		_, err := repo.Create(context.Background(), domain.Intervention{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			Status:    domain.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	page1, err := repo.ListAll(context.Background(), nil, 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page3, err := repo.ListAll(context.Background(), nil, 4, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	empty, err := repo.ListAll(context.Background(), nil, 10, 2)
	require.NoError(t, err)
	require.Empty(t, empty)

	status := domain.StatusCancelled
	none, err := repo.ListAll(context.Background(), &status, 0, 0)
	require.NoError(t, err)
	require.Empty(t, none)

	n, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestUpdateBumpsVersion(t *testing.T) {
	repo := repository.NewMemoryInterventionRepository()
	iv, err := repo.Create(context.Background(), domain.Intervention{ID: uuid.New(), Status: domain.StatusPending, Version: 1})
	require.NoError(t, err)

	iv.Status = domain.StatusCancelled
	updated, err := repo.Update(context.Background(), iv)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)

	_, err = repo.Update(context.Background(), domain.Intervention{ID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
