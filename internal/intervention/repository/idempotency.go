package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryIdempotencyRepo maps creation keys to the intervention they
// produced.
type MemoryIdempotencyRepo struct {
	mu  sync.RWMutex
	ids map[string]uuid.UUID
}

// NewMemoryIdempotencyRepo constructs an empty repository.
func NewMemoryIdempotencyRepo() *MemoryIdempotencyRepo {
	return &MemoryIdempotencyRepo{ids: make(map[string]uuid.UUID)}
}

// GetID retrieves the intervention id recorded for the key.
func (m *MemoryIdempotencyRepo) GetID(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[key]
	return id, ok, nil
}

// PutID records the intervention id produced under the key.
func (m *MemoryIdempotencyRepo) PutID(_ context.Context, key string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[key] = id
	return nil
}
