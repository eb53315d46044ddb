package notification

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher fans store mutations out to the owning user's connected
// clients. Delivery is at-most-once and best-effort: if the user has no
// active connection, or a subscriber cannot keep up, the event is dropped.
// The dispatcher holds no state about what clients display and is never a
// second source of truth.
type Dispatcher interface {
	// Publish delivers an event to every subscriber of the given user.
	// It never blocks and never returns an error to the caller; delivery
	// failures are logged and swallowed.
	Publish(userID uuid.UUID, event Event)

	// Subscribe joins the user's channel group. The returned cancel
	// function must be called on disconnect.
	Subscribe(userID uuid.UUID) (<-chan Event, func())

	// Connected reports whether the user has at least one subscriber.
	Connected(userID uuid.UUID) bool

	// Close tears down all subscriptions.
	Close()
}

// hub is the in-process Dispatcher implementation. Each user maps to a set
// of subscriber channels, one per connected device or tab; all subscribers
// of a user receive the same events.
type hub struct {
	mutex       sync.Mutex
	subscribers map[uuid.UUID]map[string]chan Event
	bufferSize  int
	logger      *logrus.Logger
	closed      bool
}

// NewDispatcher creates an in-process per-user multicast dispatcher.
// bufferSize is the per-subscriber channel capacity.
func NewDispatcher(bufferSize int, logger *logrus.Logger) Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &hub{
		subscribers: make(map[uuid.UUID]map[string]chan Event),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe joins the user's channel group.
func (h *hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ch := make(chan Event, h.bufferSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if _, exists := h.subscribers[userID]; !exists {
		h.subscribers[userID] = make(map[string]chan Event)
	}

	subscriberID := uuid.New().String()
	h.subscribers[userID][subscriberID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mutex.Lock()
			defer h.mutex.Unlock()

			if group, exists := h.subscribers[userID]; exists {
				delete(group, subscriberID)
				if len(group) == 0 {
					delete(h.subscribers, userID)
				}
				close(ch)
			}
		})
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber of the given user. The
// sends happen under the hub lock: cancel and Close close subscriber
// channels under the same lock, so a send can never hit a closed channel.
// The sends are non-blocking, so the lock hold stays bounded.
func (h *hub) Publish(userID uuid.UUID, event Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	group, exists := h.subscribers[userID]
	if !exists || h.closed {
		return // nobody connected, the event is dropped
	}

	for _, ch := range group {
		select {
		case ch <- event:
		default:
			// Subscriber is not draining its channel. Drop rather than
			// block the store mutation; the client resyncs on its next
			// fetch.
			h.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   event.Kind,
			}).Warn("Dropping push event for slow subscriber")
		}
	}
}

// Connected reports whether the user has at least one subscriber.
func (h *hub) Connected(userID uuid.UUID) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subscribers[userID]) > 0
}

// Close tears down all subscriptions.
func (h *hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for userID, group := range h.subscribers {
		for _, ch := range group {
			close(ch)
		}
		delete(h.subscribers, userID)
	}
}
