package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrBrokerClosed      = errors.New("broker is closed")
	ErrMessageProcessing = errors.New("message processing error")
)

// Message represents a generic message in the message queue
type Message struct {
	ID          string            `json:"id"`
	Topic       string            `json:"topic"`
	Payload     []byte            `json:"payload"`
	PublishedAt time.Time         `json:"published_at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// MessageHandler is a function that processes messages
type MessageHandler func(context.Context, *Message) error

// MessageBroker defines an interface for a message broker
type MessageBroker interface {
	// Publish publishes a message to a topic
	Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) error

	// Subscribe subscribes to a topic with a handler function
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Close closes the message broker
	Close() error
}

// Subscription represents a subscription to a topic
type Subscription interface {
	// ID returns the subscription ID
	ID() string

	// Topic returns the topic name
	Topic() string

	// Unsubscribe unsubscribes from the topic
	Unsubscribe() error

	// IsClosed returns true if the subscription is closed
	IsClosed() bool
}

// InMemoryBroker is a simple in-process implementation of MessageBroker.
// Handlers run asynchronously; handler errors are logged, not retried.
type InMemoryBroker struct {
	subscriptions map[string]map[string]MessageHandler
	mu            sync.RWMutex
	logger        *logrus.Logger
	wg            sync.WaitGroup
	closed        bool
}

// subscription implements the Subscription interface
type subscription struct {
	id     string
	topic  string
	broker *InMemoryBroker
	closed bool
	mu     sync.Mutex
}

// NewInMemoryBroker creates a new in-memory message broker
func NewInMemoryBroker(logger *logrus.Logger) *InMemoryBroker {
	return &InMemoryBroker{
		subscriptions: make(map[string]map[string]MessageHandler),
		logger:        logger,
	}
}

// Publish publishes a message to a topic. Each subscribed handler runs in
// its own goroutine so publishers are never blocked by consumers.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}

	handlers := make([]MessageHandler, 0, len(b.subscriptions[topic]))
	for _, handler := range b.subscriptions[topic] {
		handlers = append(handlers, handler)
	}
	// Reserve the handler goroutines while still holding the lock. Close
	// flips closed under the write lock before it waits, so once the lock is
	// released no new Add can race the Wait.
	b.wg.Add(len(handlers))
	b.mu.RUnlock()

	message := &Message{
		ID:          uuid.New().String(),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
		Attributes:  attributes,
	}

	for _, handler := range handlers {
		go func(h MessageHandler) {
			defer b.wg.Done()
			if err := h(context.Background(), message); err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"message_id": message.ID,
					"topic":      topic,
				}).Error("Message handler failed")
			}
		}(handler)
	}

	return nil
}

// Subscribe subscribes to a topic with a handler function
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	if _, exists := b.subscriptions[topic]; !exists {
		b.subscriptions[topic] = make(map[string]MessageHandler)
	}

	sub := &subscription{
		id:     uuid.New().String(),
		topic:  topic,
		broker: b,
	}
	b.subscriptions[topic][sub.id] = handler

	return sub, nil
}

// Close closes the broker and waits for in-flight handlers to finish.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscriptions = make(map[string]map[string]MessageHandler)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// ID returns the subscription ID
func (s *subscription) ID() string { return s.id }

// Topic returns the topic name
func (s *subscription) Topic() string { return s.topic }

// Unsubscribe unsubscribes from the topic
func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	if handlers, exists := s.broker.subscriptions[s.topic]; exists {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.broker.subscriptions, s.topic)
		}
	}
	return nil
}

// IsClosed returns true if the subscription is closed
func (s *subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
