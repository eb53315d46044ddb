package client

import (
	"testing"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItem(isRead bool) notification.Notification {
	n := notification.Notification{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Type:      notification.JobMatch,
		Title:     "title",
		Message:   "message",
		IsRead:    isRead,
		CreatedAt: time.Now().UTC(),
	}
	if isRead {
		now := time.Now().UTC()
		n.ReadAt = &now
	}
	return n
}

func TestApplyEventNewNotificationPrepends(t *testing.T) {
	existing := makeItem(false)
	s := State{Items: []notification.Notification{existing}, UnreadCount: 1}

	fresh := makeItem(false)
	s.applyEvent(notification.NewNotificationEvent(&fresh))

	require.Len(t, s.Items, 2)
	assert.Equal(t, fresh.ID, s.Items[0].ID, "new item goes to the front")
	assert.Equal(t, existing.ID, s.Items[1].ID)
	assert.Equal(t, int64(2), s.UnreadCount)
}

func TestApplyEventNewNotificationDeduplicates(t *testing.T) {
	item := makeItem(false)
	s := State{Items: []notification.Notification{item}, UnreadCount: 1}

	// The same item arrives again, e.g. a push racing a re-fetch.
	s.applyEvent(notification.NewNotificationEvent(&item))

	assert.Len(t, s.Items, 1)
	assert.Equal(t, int64(1), s.UnreadCount, "duplicate must not inflate the count")
}

func TestApplyEventCountUpdateAlwaysOverwrites(t *testing.T) {
	tests := []struct {
		name   string
		local  int64
		pushed int64
	}{
		{name: "server lower than local", local: 5, pushed: 2},
		{name: "server higher than local", local: 1, pushed: 9},
		{name: "server zero", local: 3, pushed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{UnreadCount: tt.local}
			s.applyEvent(notification.CountUpdateEvent(tt.pushed))
			assert.Equal(t, tt.pushed, s.UnreadCount)
		})
	}
}

func TestApplyEventMarkedReadUpgradesOnce(t *testing.T) {
	item := makeItem(false)
	s := State{Items: []notification.Notification{item}, UnreadCount: 1}

	s.applyEvent(notification.MarkedReadEvent(item.ID))
	require.True(t, s.Items[0].IsRead)
	require.NotNil(t, s.Items[0].ReadAt)
	stamped := *s.Items[0].ReadAt

	// A duplicate delivery must not restamp.
	s.applyEvent(notification.MarkedReadEvent(item.ID))
	assert.True(t, s.Items[0].ReadAt.Equal(stamped))

	// The count is left to the following count-update.
	assert.Equal(t, int64(1), s.UnreadCount)
}

func TestApplyEventMarkedReadUnknownIDIsNoop(t *testing.T) {
	item := makeItem(false)
	s := State{Items: []notification.Notification{item}}

	s.applyEvent(notification.MarkedReadEvent(uuid.New()))
	assert.False(t, s.Items[0].IsRead)
}

func TestApplyEventAllRead(t *testing.T) {
	already := makeItem(true)
	stamped := *already.ReadAt
	s := State{Items: []notification.Notification{makeItem(false), already, makeItem(false)}}

	s.applyEvent(notification.AllReadEvent())

	for i := range s.Items {
		assert.True(t, s.Items[i].IsRead)
	}
	assert.True(t, s.Items[1].ReadAt.Equal(stamped), "already-read items keep their stamp")
}

func TestReplaceDiscardsLocalState(t *testing.T) {
	s := State{
		Items:       []notification.Notification{makeItem(false)},
		UnreadCount: 7,
		Page:        3,
		HasMore:     true,
		Err:         assert.AnError,
	}

	fresh := []notification.Notification{makeItem(false), makeItem(true)}
	s.replace(fresh, 1, false)

	assert.Len(t, s.Items, 2)
	assert.Equal(t, int64(1), s.UnreadCount)
	assert.Equal(t, 1, s.Page)
	assert.False(t, s.HasMore)
	assert.NoError(t, s.Err)
}

func TestAppendPageSkipsHeldItems(t *testing.T) {
	held := makeItem(false)
	s := State{Items: []notification.Notification{held}, Page: 1}

	overlap := []notification.Notification{held, makeItem(false)}
	s.appendPage(overlap, 2, 2, false)

	assert.Len(t, s.Items, 2, "item already held is skipped")
	assert.Equal(t, 2, s.Page)
	assert.Equal(t, int64(2), s.UnreadCount)
}

func TestOptimisticMarkRead(t *testing.T) {
	item := makeItem(false)
	s := State{Items: []notification.Notification{item}, UnreadCount: 2}

	s.optimisticMarkRead(item.ID)
	assert.True(t, s.Items[0].IsRead)
	assert.Equal(t, int64(1), s.UnreadCount)

	// Repeating is a no-op.
	s.optimisticMarkRead(item.ID)
	assert.Equal(t, int64(1), s.UnreadCount)
}

func TestOptimisticMarkAllRead(t *testing.T) {
	s := State{
		Items:       []notification.Notification{makeItem(false), makeItem(false)},
		UnreadCount: 2,
	}

	s.optimisticMarkAllRead()
	assert.True(t, s.Items[0].IsRead)
	assert.True(t, s.Items[1].IsRead)
	assert.Equal(t, int64(0), s.UnreadCount)
}

func TestOptimisticDelete(t *testing.T) {
	unread := makeItem(false)
	read := makeItem(true)
	s := State{Items: []notification.Notification{unread, read}, UnreadCount: 1}

	s.optimisticDelete(read.ID)
	assert.Len(t, s.Items, 1)
	assert.Equal(t, int64(1), s.UnreadCount, "deleting a read item keeps the count")

	s.optimisticDelete(unread.ID)
	assert.Empty(t, s.Items)
	assert.Equal(t, int64(0), s.UnreadCount)
}

func TestOptimisticClear(t *testing.T) {
	s := State{
		Items:       []notification.Notification{makeItem(false)},
		UnreadCount: 1,
		HasMore:     true,
	}

	s.optimisticClear()
	assert.Empty(t, s.Items)
	assert.Equal(t, int64(0), s.UnreadCount)
	assert.False(t, s.HasMore)
}

func TestCloneIsolatesItems(t *testing.T) {
	item := makeItem(false)
	s := State{Items: []notification.Notification{item}}

	snapshot := s.clone()
	s.Items[0].IsRead = true

	assert.False(t, snapshot.Items[0].IsRead, "snapshot must not alias live items")
}
