// Package notification stores per-user notices. Delivery channels (push,
// email) are out of scope; records only.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

const defaultListLimit = 50

// Service wraps the notification store with ownership rules.
type Service struct {
	repo  domain.NotificationRepository
	clock domain.Clock
}

// New constructs a notification Service.
func New(repo domain.NotificationRepository, clock domain.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// Create stores a notification. Non-admins may only notify themselves.
func (s *Service) Create(ctx context.Context, callerID uuid.UUID, role domain.Role, targetUserID uuid.UUID, title, body, kind string, data map[string]string) (domain.Notification, error) {
	if role != domain.RoleAdmin && targetUserID != callerID {
		return domain.Notification{}, fmt.Errorf("notification target: %w", domain.ErrForbidden)
	}
	n := domain.Notification{
		ID:        uuid.New(),
		UserID:    targetUserID,
		Title:     title,
		Body:      body,
		Kind:      kind,
		Data:      data,
		CreatedAt: s.clock.Now(),
	}
	return s.repo.Create(ctx, n)
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, callerID, unreadOnly, defaultListLimit)
}

// MarkRead flags one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, notificationID, callerID uuid.UUID) error {
	return s.repo.MarkRead(ctx, notificationID, callerID)
}
