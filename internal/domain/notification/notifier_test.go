package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierBuildsTypedNotifications(t *testing.T) {
	service, _ := newTestService(t)
	notifier := NewNotifier(service, quietLogger())
	ctx := context.Background()
	userID := uuid.New()

	appID := uuid.New()
	jobID := uuid.New()
	threadID := uuid.New()

	require.NoError(t, notifier.ApplicationStatusChanged(ctx, userID, appID, "Backend Developer", "shortlisted"))
	require.NoError(t, notifier.JobMatched(ctx, userID, jobID, "Go Engineer"))
	require.NoError(t, notifier.MessageReceived(ctx, userID, threadID, "Dana"))
	require.NoError(t, notifier.AccountUpdated(ctx, userID, "Password changed", "Your password was changed"))

	rows, total, err := service.List(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	byType := make(map[Type]*Notification, len(rows))
	for _, row := range rows {
		byType[row.Type] = row
	}

	app := byType[ApplicationUpdate]
	require.NotNil(t, app)
	payload, ok := app.Data.Payload.(ApplicationPayload)
	require.True(t, ok)
	assert.Equal(t, appID, payload.ApplicationID)
	assert.Equal(t, "shortlisted", payload.Status)
	assert.Equal(t, "/applications/"+appID.String(), app.ActionURL)

	match := byType[JobMatch]
	require.NotNil(t, match)
	assert.Equal(t, "/jobs/"+jobID.String(), match.ActionURL)

	msg := byType[NewMessage]
	require.NotNil(t, msg)
	assert.Contains(t, msg.Message, "Dana")
	assert.Equal(t, "/messages/"+threadID.String(), msg.ActionURL)

	account := byType[AccountUpdate]
	require.NotNil(t, account)
	assert.True(t, account.Data.IsZero())
	assert.Equal(t, "/settings/account", account.ActionURL)
}

func TestNotifierInterviewAndDeadline(t *testing.T) {
	service, _ := newTestService(t)
	notifier := NewNotifier(service, quietLogger())
	ctx := context.Background()
	userID := uuid.New()

	interviewID := uuid.New()
	jobID := uuid.New()
	when := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, notifier.InterviewScheduled(ctx, userID, interviewID, "Platform Engineer", when))
	require.NoError(t, notifier.DeadlineApproaching(ctx, userID, jobID, "Platform Engineer", when))

	rows, _, err := service.List(ctx, userID, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, row := range rows {
		switch row.Type {
		case InterviewUpdate:
			payload, ok := row.Data.Payload.(InterviewPayload)
			require.True(t, ok)
			assert.Equal(t, interviewID, payload.InterviewID)
			assert.Equal(t, "2026-09-15T10:00:00Z", payload.ScheduledAt)
		case DeadlineReminder:
			payload, ok := row.Data.Payload.(DeadlinePayload)
			require.True(t, ok)
			assert.Equal(t, jobID, payload.JobID)
			assert.Equal(t, "2026-09-15T10:00:00Z", payload.Deadline)
		default:
			t.Fatalf("unexpected notification type %q", row.Type)
		}
	}
}
