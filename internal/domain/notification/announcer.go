package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/atefhejazi1/job-kit-sub001/pkg/broker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// announcementsTopic is the broker topic carrying platform-wide broadcasts.
const announcementsTopic = "notifications.announcements"

// announcementMessage is the broker payload for one broadcast.
type announcementMessage struct {
	UserIDs []uuid.UUID `json:"user_ids"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// Announcer enqueues system announcements for asynchronous bulk creation.
// The broker sits upstream of the store: a consumed announcement goes through
// the normal CreateBulk path, so the count-only push asymmetry of bulk
// creates applies.
type Announcer interface {
	// Announce enqueues a system announcement for the given users.
	Announce(ctx context.Context, userIDs []uuid.UUID, title, message string) error
}

type brokerAnnouncer struct {
	messageBroker broker.MessageBroker
	logger        *logrus.Logger
}

// NewAnnouncer creates an announcement producer on the given broker.
func NewAnnouncer(messageBroker broker.MessageBroker, logger *logrus.Logger) Announcer {
	return &brokerAnnouncer{
		messageBroker: messageBroker,
		logger:        logger,
	}
}

// Announce enqueues a system announcement for the given users.
func (a *brokerAnnouncer) Announce(ctx context.Context, userIDs []uuid.UUID, title, message string) error {
	if len(userIDs) == 0 {
		return ErrNoRecipients
	}

	payload, err := json.Marshal(announcementMessage{
		UserIDs: userIDs,
		Title:   title,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}

	err = a.messageBroker.Publish(ctx, announcementsTopic, payload, map[string]string{
		"recipients": strconv.Itoa(len(userIDs)),
	})
	if err != nil {
		a.logger.WithError(err).Error("Failed to publish announcement")
		return err
	}

	a.logger.WithField("recipients", len(userIDs)).Debug("Announcement published")
	return nil
}

// AnnouncementConsumer drains the announcements topic into the store.
type AnnouncementConsumer interface {
	// Start subscribes the consumer to the announcements topic.
	Start(ctx context.Context) error

	// Stop unsubscribes the consumer.
	Stop() error

	// IsRunning returns true if the consumer is subscribed.
	IsRunning() bool
}

type announcementConsumer struct {
	messageBroker broker.MessageBroker
	service       Service
	logger        *logrus.Logger
	subscription  broker.Subscription
	mu            sync.Mutex
}

// NewAnnouncementConsumer creates a consumer that performs the bulk create
// for every announcement it receives.
func NewAnnouncementConsumer(messageBroker broker.MessageBroker, service Service, logger *logrus.Logger) AnnouncementConsumer {
	return &announcementConsumer{
		messageBroker: messageBroker,
		service:       service,
		logger:        logger,
	}
}

// Start subscribes the consumer to the announcements topic.
func (c *announcementConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscription != nil {
		return errors.New("consumer already running")
	}

	sub, err := c.messageBroker.Subscribe(ctx, announcementsTopic, c.handleMessage)
	if err != nil {
		c.logger.WithError(err).Error("Failed to subscribe to announcements topic")
		return err
	}
	c.subscription = sub

	c.logger.WithFields(logrus.Fields{
		"topic":        announcementsTopic,
		"subscription": sub.ID(),
	}).Info("Announcement consumer started")
	return nil
}

// Stop unsubscribes the consumer.
func (c *announcementConsumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscription == nil {
		return nil
	}
	if err := c.subscription.Unsubscribe(); err != nil {
		c.logger.WithError(err).Error("Failed to unsubscribe from announcements topic")
		return err
	}
	c.subscription = nil

	c.logger.Info("Announcement consumer stopped")
	return nil
}

// IsRunning returns true if the consumer is subscribed.
func (c *announcementConsumer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscription != nil
}

// handleMessage performs the bulk create for one announcement.
func (c *announcementConsumer) handleMessage(ctx context.Context, message *broker.Message) error {
	var announcement announcementMessage
	if err := json.Unmarshal(message.Payload, &announcement); err != nil {
		c.logger.WithError(err).WithField("message_id", message.ID).
			Error("Failed to unmarshal announcement message")
		return err
	}

	count, err := c.service.CreateBulk(ctx, announcement.UserIDs,
		SystemAnnouncement, announcement.Title, announcement.Message, Data{})
	if err != nil {
		c.logger.WithError(err).WithField("message_id", message.ID).
			Error("Failed to create announcement notifications")
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"message_id": message.ID,
		"created":    count,
	}).Debug("Announcement notifications created")
	return nil
}
