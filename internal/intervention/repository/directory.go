package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// MemoryUserDirectory is the in-memory participant store. Users are never
// hard-deleted; deactivation flips the Active flag only.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
	order []uuid.UUID
}

// NewMemoryUserDirectory constructs an empty directory.
func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{users: make(map[uuid.UUID]domain.User)}
}

// Insert stores a participant. Insertion order is retained so candidate
// listings are stable across calls.
func (m *MemoryUserDirectory) Insert(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.ID]; !exists {
		m.order = append(m.order, u.ID)
	}
	m.users[u.ID] = u
	return u, nil
}

// GetByID retrieves a participant.
func (m *MemoryUserDirectory) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// AvailableTechnicians returns available, active technicians in insertion
// order. Coordinate filtering is the matcher's concern, not the store's.
func (m *MemoryUserDirectory) AvailableTechnicians(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.User
	for _, id := range m.order {
		u := m.users[id]
		if u.Role == domain.RoleTechnician && u.Available && u.Active {
			res = append(res, u)
		}
	}
	return res, nil
}

// SetAvailability toggles a technician's availability flag.
func (m *MemoryUserDirectory) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.Available = available
	m.users[id] = u
	return nil
}

// SetActive flips the soft status flag.
func (m *MemoryUserDirectory) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.Active = active
	m.users[id] = u
	return nil
}

// UpdateLocation stores the participant's latest coordinates.
func (m *MemoryUserDirectory) UpdateLocation(_ context.Context, id uuid.UUID, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.Latitude = &lat
	u.Longitude = &lng
	m.users[id] = u
	return nil
}

// List pages through participants, optionally filtered by role.
func (m *MemoryUserDirectory) List(_ context.Context, role *domain.Role, skip, limit int) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.User
	for _, id := range m.order {
		u := m.users[id]
		if role == nil || u.Role == *role {
			res = append(res, u)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if skip < 0 {
		skip = 0
	}
	if skip >= len(res) {
		return nil, nil
	}
	res = res[skip:]
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return append([]domain.User(nil), res...), nil
}

// CountByRole counts participants holding the role.
func (m *MemoryUserDirectory) CountByRole(_ context.Context, role domain.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// AverageRating averages ratings across every participant.
func (m *MemoryUserDirectory) AverageRating(_ context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.users) == 0 {
		return 0, nil
	}
	var sum float64
	for _, u := range m.users {
		sum += u.Rating
	}
	return sum / float64(len(m.users)), nil
}
