package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier is the facade the job-board collaborators (application, interview
// and messaging handlers) use to create notifications without touching the
// repository or dispatcher directly. Each helper builds the payload variant
// matching its notification type. Store failures propagate to the caller;
// push failures never do.
type Notifier interface {
	ApplicationStatusChanged(ctx context.Context, userID, applicationID uuid.UUID, jobTitle, status string) error
	InterviewScheduled(ctx context.Context, userID, interviewID uuid.UUID, jobTitle string, scheduledAt time.Time) error
	MessageReceived(ctx context.Context, userID, threadID uuid.UUID, senderName string) error
	JobMatched(ctx context.Context, userID, jobID uuid.UUID, jobTitle string) error
	DeadlineApproaching(ctx context.Context, userID, jobID uuid.UUID, jobTitle string, deadline time.Time) error
	AccountUpdated(ctx context.Context, userID uuid.UUID, title, message string) error
}

type notifierImpl struct {
	service Service
	logger  *logrus.Logger
}

// NewNotifier creates a notifier backed by the notification service.
func NewNotifier(service Service, logger *logrus.Logger) Notifier {
	return &notifierImpl{service: service, logger: logger}
}

func (n *notifierImpl) ApplicationStatusChanged(ctx context.Context, userID, applicationID uuid.UUID, jobTitle, status string) error {
	data := Data{Payload: ApplicationPayload{
		ApplicationID: applicationID,
		JobTitle:      jobTitle,
		Status:        status,
	}}
	_, err := n.service.Create(ctx, userID, ApplicationUpdate,
		"Application update",
		fmt.Sprintf("Your application for %q is now %s.", jobTitle, status),
		data, "")
	return err
}

func (n *notifierImpl) InterviewScheduled(ctx context.Context, userID, interviewID uuid.UUID, jobTitle string, scheduledAt time.Time) error {
	data := Data{Payload: InterviewPayload{
		InterviewID: interviewID,
		JobTitle:    jobTitle,
		ScheduledAt: scheduledAt.UTC().Format(time.RFC3339),
	}}
	_, err := n.service.Create(ctx, userID, InterviewUpdate,
		"Interview scheduled",
		fmt.Sprintf("An interview for %q is scheduled for %s.", jobTitle, scheduledAt.Format("Jan 2, 2006 at 15:04")),
		data, "")
	return err
}

func (n *notifierImpl) MessageReceived(ctx context.Context, userID, threadID uuid.UUID, senderName string) error {
	data := Data{Payload: MessagePayload{
		ThreadID:   threadID,
		SenderName: senderName,
	}}
	_, err := n.service.Create(ctx, userID, NewMessage,
		"New message",
		fmt.Sprintf("%s sent you a message.", senderName),
		data, "")
	return err
}

func (n *notifierImpl) JobMatched(ctx context.Context, userID, jobID uuid.UUID, jobTitle string) error {
	data := Data{Payload: JobMatchPayload{
		JobID:    jobID,
		JobTitle: jobTitle,
	}}
	_, err := n.service.Create(ctx, userID, JobMatch,
		"New job match",
		fmt.Sprintf("%q matches your profile.", jobTitle),
		data, "")
	return err
}

func (n *notifierImpl) DeadlineApproaching(ctx context.Context, userID, jobID uuid.UUID, jobTitle string, deadline time.Time) error {
	data := Data{Payload: DeadlinePayload{
		JobID:    jobID,
		JobTitle: jobTitle,
		Deadline: deadline.UTC().Format(time.RFC3339),
	}}
	_, err := n.service.Create(ctx, userID, DeadlineReminder,
		"Application deadline approaching",
		fmt.Sprintf("Applications for %q close on %s.", jobTitle, deadline.Format("Jan 2, 2006")),
		data, "")
	return err
}

func (n *notifierImpl) AccountUpdated(ctx context.Context, userID uuid.UUID, title, message string) error {
	_, err := n.service.Create(ctx, userID, AccountUpdate, title, message, Data{}, "")
	return err
}
