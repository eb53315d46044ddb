package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service is the write path of the notification subsystem. It is the only
// caller of the repository's mutating operations; after every mutation
// commits it hands the outcome to the dispatcher. Push delivery never blocks
// or fails the originating mutation.
type Service interface {
	// Create persists one notification and fans it out to the owning
	// user's connections.
	Create(ctx context.Context, userID uuid.UUID, typ Type, title, message string, data Data, actionURL string) (*Notification, error)

	// CreateBulk persists one notification per user. Only a count update is
	// pushed per affected user; no per-item event is available because the
	// batch insert does not return rows.
	CreateBulk(ctx context.Context, userIDs []uuid.UUID, typ Type, title, message string, data Data) (int64, error)

	// MarkAsRead flips one notification to read. Idempotent.
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error)

	// MarkAllAsRead flips every unread notification of the user atomically.
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes one notification.
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// ClearAll removes every notification of the user.
	ClearAll(ctx context.Context, userID uuid.UUID) (int64, error)

	// UnreadCount returns the authoritative unread count.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)

	// List returns one page of notifications, newest first, plus the total
	// row count.
	List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*Notification, int64, error)

	// Subscribe joins the user's push channel group.
	Subscribe(userID uuid.UUID) (<-chan Event, func())
}

// ServiceConfig holds the configuration for the notification service
type ServiceConfig struct {
	Repository Repository
	Dispatcher Dispatcher
	Logger     *logrus.Logger
}

// serviceImpl implements the notification Service interface
type serviceImpl struct {
	repo       Repository
	dispatcher Dispatcher
	logger     *logrus.Logger
}

// NewService creates a new notification service
func NewService(config ServiceConfig) Service {
	return &serviceImpl{
		repo:       config.Repository,
		dispatcher: config.Dispatcher,
		logger:     config.Logger,
	}
}

// Create persists one notification, then pushes the new item and the fresh
// unread count to the owning user.
func (s *serviceImpl) Create(ctx context.Context, userID uuid.UUID, typ Type, title, message string, data Data, actionURL string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      data,
		ActionURL: actionURL,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.dispatcher.Publish(userID, NewNotificationEvent(n))
	s.pushUnreadCount(ctx, userID)
	return n, nil
}

// CreateBulk persists one notification per user and pushes a count update to
// each affected user that is currently connected.
func (s *serviceImpl) CreateBulk(ctx context.Context, userIDs []uuid.UUID, typ Type, title, message string, data Data) (int64, error) {
	count, err := s.repo.CreateBulk(ctx, userIDs, typ, title, message, data)
	if err != nil {
		return 0, err
	}

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		s.pushUnreadCount(ctx, userID)
	}
	return count, nil
}

// MarkAsRead flips one notification to read and pushes the read marker plus
// the fresh unread count.
func (s *serviceImpl) MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.MarkAsRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Publish(userID, MarkedReadEvent(n.ID))
	s.pushUnreadCount(ctx, userID)
	return n, nil
}

// MarkAllAsRead flips every unread notification atomically. The pushed count
// is zero by construction, no recomputation needed.
func (s *serviceImpl) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	affected, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.dispatcher.Publish(userID, AllReadEvent())
	s.dispatcher.Publish(userID, CountUpdateEvent(0))
	return affected, nil
}

// Delete removes one notification. A count update is pushed only when the
// deleted row was still unread; deleting a read row leaves the count as is.
func (s *serviceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}

	if !deleted.IsRead {
		s.pushUnreadCount(ctx, userID)
	}
	return nil
}

// ClearAll removes every notification of the user.
func (s *serviceImpl) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	deleted, err := s.repo.ClearAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.dispatcher.Publish(userID, CountUpdateEvent(0))
	return deleted, nil
}

// UnreadCount returns the authoritative unread count.
func (s *serviceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// List returns one page of notifications plus the total row count.
func (s *serviceImpl) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*Notification, int64, error) {
	return s.repo.List(ctx, userID, page, pageSize)
}

// Subscribe joins the user's push channel group.
func (s *serviceImpl) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	return s.dispatcher.Subscribe(userID)
}

// pushUnreadCount recomputes the authoritative count and pushes it to the
// user's connections. Failures on this path are logged and swallowed; the
// originating mutation has already committed.
func (s *serviceImpl) pushUnreadCount(ctx context.Context, userID uuid.UUID) {
	if !s.dispatcher.Connected(userID) {
		return
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("Failed to recompute unread count for push")
		return
	}
	s.dispatcher.Publish(userID, CountUpdateEvent(count))
}
