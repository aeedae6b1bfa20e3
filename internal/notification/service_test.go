package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/repository"
	"github.com/example/fixlite/internal/notification"
)

type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestCreateTargets(t *testing.T) {
	svc := notification.New(repository.NewMemoryNotificationRepository(), &tickingClock{t: time.Unix(0, 0).UTC()})
	user := uuid.New()
	other := uuid.New()

	n, err := svc.Create(context.Background(), user, domain.RoleUser, user, "claimed", "a technician took your request", "intervention", nil)
	require.NoError(t, err)
	require.Equal(t, user, n.UserID)

	// non-admins cannot notify someone else
	_, err = svc.Create(context.Background(), user, domain.RoleUser, other, "spam", "", "misc", nil)
	require.ErrorIs(t, err, domain.ErrForbidden)

	// admins can
	_, err = svc.Create(context.Background(), uuid.New(), domain.RoleAdmin, other, "notice", "account review", "admin", nil)
	require.NoError(t, err)
}

func TestListNewestFirstAndUnreadFilter(t *testing.T) {
	svc := notification.New(repository.NewMemoryNotificationRepository(), &tickingClock{t: time.Unix(0, 0).UTC()})
	user := uuid.New()

	first, err := svc.Create(context.Background(), user, domain.RoleUser, user, "first", "", "misc", nil)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), user, domain.RoleUser, user, "second", "", "misc", nil)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), user, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID)
	require.Equal(t, first.ID, all[1].ID)

	require.NoError(t, svc.MarkRead(context.Background(), second.ID, user))

	unread, err := svc.List(context.Background(), user, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, first.ID, unread[0].ID)
}

func TestMarkReadOwnerOnly(t *testing.T) {
	svc := notification.New(repository.NewMemoryNotificationRepository(), &tickingClock{t: time.Unix(0, 0).UTC()})
	user := uuid.New()

	n, err := svc.Create(context.Background(), user, domain.RoleUser, user, "note", "", "misc", nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(context.Background(), n.ID, uuid.New()), domain.ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), n.ID, user))
}
