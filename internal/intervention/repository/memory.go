package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// MemoryInterventionRepository is an in-memory store suitable for tests and
// single-process deployments. The claim discipline matches a document
// store's conditional update-by-filter: the status check and the write
// happen under one lock, so at most one concurrent claimant wins.
type MemoryInterventionRepository struct {
	mu            sync.RWMutex
	interventions map[uuid.UUID]domain.Intervention
}

// NewMemoryInterventionRepository constructs an empty repository.
func NewMemoryInterventionRepository() *MemoryInterventionRepository {
	return &MemoryInterventionRepository{interventions: make(map[uuid.UUID]domain.Intervention)}
}

// Create stores the intervention and returns it.
func (m *MemoryInterventionRepository) Create(_ context.Context, iv domain.Intervention) (domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interventions[iv.ID] = iv
	return iv, nil
}

// GetByID retrieves an intervention.
func (m *MemoryInterventionRepository) GetByID(_ context.Context, id uuid.UUID) (domain.Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iv, ok := m.interventions[id]
	if !ok {
		return domain.Intervention{}, fmt.Errorf("intervention %s: %w", id, domain.ErrNotFound)
	}
	return iv, nil
}

// Update replaces the stored record, bumping the optimistic version.
func (m *MemoryInterventionRepository) Update(_ context.Context, iv domain.Intervention) (domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.interventions[iv.ID]
	if !ok {
		return domain.Intervention{}, fmt.Errorf("intervention %s: %w", iv.ID, domain.ErrNotFound)
	}
	iv.Version = existing.Version + 1
	m.interventions[iv.ID] = iv
	return iv, nil
}

// ClaimPending performs the conditional assignment write. It fails with
// ErrPreconditionFailed when the record left pending between the caller's
// read and this write, which is the expected outcome for claim-race losers.
func (m *MemoryInterventionRepository) ClaimPending(_ context.Context, id, technicianID uuid.UUID, at time.Time) (domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interventions[id]
	if !ok {
		return domain.Intervention{}, fmt.Errorf("intervention %s: %w", id, domain.ErrNotFound)
	}
	if iv.Status != domain.StatusPending {
		return domain.Intervention{}, fmt.Errorf("intervention %s no longer available: %w", id, domain.ErrPreconditionFailed)
	}
	tech := technicianID
	assignedAt := at
	iv.TechnicianID = &tech
	iv.Status = domain.StatusAssigned
	iv.AssignedAt = &assignedAt
	iv.Version++
	m.interventions[id] = iv
	return iv, nil
}

// ListByUser returns the user's interventions, newest first.
func (m *MemoryInterventionRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Intervention
	for _, iv := range m.interventions {
		if iv.UserID == userID {
			res = append(res, iv)
		}
	}
	sortByCreation(res)
	return res, nil
}

// ListForTechnician returns pending work plus the technician's assignments.
func (m *MemoryInterventionRepository) ListForTechnician(_ context.Context, technicianID uuid.UUID) ([]domain.Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Intervention
	for _, iv := range m.interventions {
		if iv.Status == domain.StatusPending || (iv.TechnicianID != nil && *iv.TechnicianID == technicianID) {
			res = append(res, iv)
		}
	}
	sortByCreation(res)
	return res, nil
}

// ListAll pages through every intervention, optionally filtered by status.
func (m *MemoryInterventionRepository) ListAll(_ context.Context, status *domain.InterventionStatus, skip, limit int) ([]domain.Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Intervention
	for _, iv := range m.interventions {
		if status == nil || iv.Status == *status {
			res = append(res, iv)
		}
	}
	sortByCreation(res)
	return page(res, skip, limit), nil
}

// Count returns the number of interventions, optionally filtered by status.
func (m *MemoryInterventionRepository) Count(_ context.Context, status *domain.InterventionStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if status == nil {
		return len(m.interventions), nil
	}
	n := 0
	for _, iv := range m.interventions {
		if iv.Status == *status {
			n++
		}
	}
	return n, nil
}

func sortByCreation(ivs []domain.Intervention) {
	sort.SliceStable(ivs, func(i, j int) bool {
		if ivs[i].CreatedAt.Equal(ivs[j].CreatedAt) {
			return ivs[i].ID.String() < ivs[j].ID.String()
		}
		return ivs[i].CreatedAt.After(ivs[j].CreatedAt)
	})
}

func page(ivs []domain.Intervention, skip, limit int) []domain.Intervention {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(ivs) {
		return nil
	}
	ivs = ivs[skip:]
	if limit > 0 && limit < len(ivs) {
		ivs = ivs[:limit]
	}
	return append([]domain.Intervention(nil), ivs...)
}
