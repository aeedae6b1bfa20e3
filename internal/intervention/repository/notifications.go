package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// MemoryNotificationRepository stores per-user notifications.
type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]domain.Notification
}

// NewMemoryNotificationRepository constructs an empty store.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{notifications: make(map[uuid.UUID]domain.Notification)}
}

// Create stores a notification.
func (m *MemoryNotificationRepository) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[n.ID] = n
	return n, nil
}

// ListByUser returns the user's notifications, newest first.
func (m *MemoryNotificationRepository) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Notification
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		res = append(res, n)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

// MarkRead flags the notification as read; only the owner may do so.
func (m *MemoryNotificationRepository) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}
