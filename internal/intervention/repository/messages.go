package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// MemoryMessageRepository is the append-only message log.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages []domain.Message
}

// NewMemoryMessageRepository constructs an empty log.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{}
}

// Append stores a message.
func (m *MemoryMessageRepository) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return msg, nil
}

// ListByIntervention returns the intervention's messages ordered by
// creation time, ties kept in append order.
func (m *MemoryMessageRepository) ListByIntervention(_ context.Context, interventionID uuid.UUID) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Message
	for _, msg := range m.messages {
		if msg.InterventionID == interventionID {
			res = append(res, msg)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}
