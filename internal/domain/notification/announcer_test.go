package notification

import (
	"context"
	"testing"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/pkg/broker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncerRejectsEmptyRecipients(t *testing.T) {
	logger := quietLogger()
	msgBroker := broker.NewInMemoryBroker(logger)
	defer msgBroker.Close()

	announcer := NewAnnouncer(msgBroker, logger)
	err := announcer.Announce(context.Background(), nil, "t", "m")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestAnnouncementPipelineCreatesNotifications(t *testing.T) {
	service, _ := newTestService(t)
	logger := quietLogger()
	msgBroker := broker.NewInMemoryBroker(logger)
	defer msgBroker.Close()

	consumer := NewAnnouncementConsumer(msgBroker, service, logger)
	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	announcer := NewAnnouncer(msgBroker, logger)
	users := []uuid.UUID{uuid.New(), uuid.New()}

	require.NoError(t, announcer.Announce(context.Background(), users, "Maintenance", "Downtime at 02:00"))

	// The consumer runs asynchronously; wait for the rows to land.
	require.Eventually(t, func() bool {
		for _, userID := range users {
			count, err := service.UnreadCount(context.Background(), userID)
			if err != nil || count != 1 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	rows, _, err := service.List(context.Background(), users[0], 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, SystemAnnouncement, rows[0].Type)
	assert.Equal(t, "Maintenance", rows[0].Title)
	assert.Equal(t, "/announcements", rows[0].ActionURL)
}

func TestAnnouncementConsumerLifecycle(t *testing.T) {
	service, _ := newTestService(t)
	logger := quietLogger()
	msgBroker := broker.NewInMemoryBroker(logger)
	defer msgBroker.Close()

	consumer := NewAnnouncementConsumer(msgBroker, service, logger)
	assert.False(t, consumer.IsRunning())

	require.NoError(t, consumer.Start(context.Background()))
	assert.True(t, consumer.IsRunning())

	err := consumer.Start(context.Background())
	assert.Error(t, err, "double start is rejected")

	require.NoError(t, consumer.Stop())
	assert.False(t, consumer.IsRunning())

	// Stop is idempotent.
	require.NoError(t, consumer.Stop())
}
