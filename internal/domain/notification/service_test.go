package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, Dispatcher) {
	t.Helper()
	logger := quietLogger()
	dispatcher := NewDispatcher(16, logger)
	t.Cleanup(dispatcher.Close)

	service := NewService(ServiceConfig{
		Repository: NewRepository(newTestDB(t), logger),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	return service, dispatcher
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServiceCreatePushesItemThenCount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	created, err := service.Create(ctx, userID, JobMatch, "New match", "A job matches you",
		Data{Payload: JobMatchPayload{JobID: uuid.New(), JobTitle: "Go Engineer"}}, "")
	require.NoError(t, err)
	require.NotNil(t, created)

	item := receiveEvent(t, ch)
	assert.Equal(t, EventNewNotification, item.Kind)
	require.NotNil(t, item.Notification)
	assert.Equal(t, created.ID, item.Notification.ID)
	assert.False(t, item.Notification.IsRead)

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(1), count.UnreadCount)
}

func TestServiceCreateWithoutSubscriberStillPersists(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := service.Create(ctx, userID, AccountUpdate, "Profile updated", "Your profile changed", Data{}, "")
	require.NoError(t, err)

	count, err := service.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestServiceCreateBulkPushesCountOnly(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	// The same user appears twice; the push is deduplicated while both rows
	// are still inserted.
	created, err := service.CreateBulk(ctx, []uuid.UUID{userID, userID},
		SystemAnnouncement, "Maintenance", "Scheduled downtime", Data{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created)

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(2), count.UnreadCount)

	// No per-item events for bulk creates.
	assertNoEvent(t, ch)
}

func TestServiceMarkAsReadPushesMarkerThenCount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := service.Create(ctx, userID, NewMessage, "New message", "hello", Data{}, "")
	require.NoError(t, err)

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	updated, err := service.MarkAsRead(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	marker := receiveEvent(t, ch)
	assert.Equal(t, EventMarkedRead, marker.Kind)
	assert.Equal(t, created.ID, marker.NotificationID)

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(0), count.UnreadCount)
}

func TestServiceMarkAsReadForeignUser(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := service.Create(ctx, owner, NewMessage, "New message", "hello", Data{}, "")
	require.NoError(t, err)

	_, err = service.MarkAsRead(ctx, uuid.New(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceMarkAllAsReadPushesAllReadThenZero(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := service.Create(ctx, userID, JobMatch, "match", "m", Data{}, "")
		require.NoError(t, err)
	}

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	affected, err := service.MarkAllAsRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	allRead := receiveEvent(t, ch)
	assert.Equal(t, EventAllRead, allRead.Kind)

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(0), count.UnreadCount)
}

func TestServiceDeleteUnreadPushesCount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := service.Create(ctx, userID, JobMatch, "keep", "m", Data{}, "")
	require.NoError(t, err)
	drop, err := service.Create(ctx, userID, NewMessage, "drop", "m", Data{}, "")
	require.NoError(t, err)

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	require.NoError(t, service.Delete(ctx, userID, drop.ID))

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(1), count.UnreadCount)
}

func TestServiceDeleteReadRowPushesNothing(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := service.Create(ctx, userID, JobMatch, "match", "m", Data{}, "")
	require.NoError(t, err)
	_, err = service.MarkAsRead(ctx, userID, created.ID)
	require.NoError(t, err)

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	require.NoError(t, service.Delete(ctx, userID, created.ID))

	// Deleting an already-read row cannot change the unread count.
	assertNoEvent(t, ch)
}

func TestServiceClearAllPushesZeroCount(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := service.Create(ctx, userID, JobMatch, "match", "m", Data{}, "")
		require.NoError(t, err)
	}

	ch, cancel := service.Subscribe(userID)
	defer cancel()

	deleted, err := service.ClearAll(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count := receiveEvent(t, ch)
	assert.Equal(t, EventCountUpdate, count.Kind)
	assert.Equal(t, int64(0), count.UnreadCount)
}

func TestServiceListPaginates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := service.Create(ctx, userID, JobMatch, "match", "m", Data{}, "")
		require.NoError(t, err)
	}

	rows, total, err := service.List(ctx, userID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, rows, 3)
}
