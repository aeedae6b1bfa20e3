package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/fixlite/internal/intervention/domain"
)

// MemoryPaymentRepository stores checkout transactions keyed by external
// session id. Records are append-or-update-status only, never deleted.
type MemoryPaymentRepository struct {
	mu        sync.RWMutex
	bySession map[string]domain.PaymentTransaction
	order     []string
}

// NewMemoryPaymentRepository constructs an empty payment repository.
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{bySession: make(map[string]domain.PaymentTransaction)}
}

// Create stores a new transaction.
func (m *MemoryPaymentRepository) Create(_ context.Context, tx domain.PaymentTransaction) (domain.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[tx.SessionID]; exists {
		return domain.PaymentTransaction{}, fmt.Errorf("session %s already recorded: %w", tx.SessionID, domain.ErrPreconditionFailed)
	}
	m.bySession[tx.SessionID] = tx
	m.order = append(m.order, tx.SessionID)
	return tx, nil
}

// GetBySessionID retrieves a transaction.
func (m *MemoryPaymentRepository) GetBySessionID(_ context.Context, sessionID string) (domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.bySession[sessionID]
	if !ok {
		return domain.PaymentTransaction{}, fmt.Errorf("payment session %s: %w", sessionID, domain.ErrNotFound)
	}
	return tx, nil
}

// UpdateStatus applies a reconciled processor status.
func (m *MemoryPaymentRepository) UpdateStatus(_ context.Context, sessionID string, status domain.PaymentStatus, at time.Time) (domain.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.bySession[sessionID]
	if !ok {
		return domain.PaymentTransaction{}, fmt.Errorf("payment session %s: %w", sessionID, domain.ErrNotFound)
	}
	tx.Status = status
	tx.UpdatedAt = at
	m.bySession[sessionID] = tx
	return tx, nil
}

// List pages through transactions in creation order.
func (m *MemoryPaymentRepository) List(_ context.Context, skip, limit int) ([]domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.PaymentTransaction, 0, len(m.order))
	for _, sid := range m.order {
		res = append(res, m.bySession[sid])
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
	return res, nil
}

// ListByStatus returns every transaction holding the status.
func (m *MemoryPaymentRepository) ListByStatus(_ context.Context, status domain.PaymentStatus) ([]domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.PaymentTransaction
	for _, sid := range m.order {
		if tx := m.bySession[sid]; tx.Status == status {
			res = append(res, tx)
		}
	}
	return res, nil
}
