package broker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker() *InMemoryBroker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewInMemoryBroker(logger)
}

func TestBrokerPublishReachesSubscriber(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	ctx := context.Background()

	received := make(chan *Message, 1)
	sub, err := b.Subscribe(ctx, "jobs.matched", func(_ context.Context, m *Message) error {
		received <- m
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "jobs.matched", sub.Topic())
	assert.False(t, sub.IsClosed())

	err = b.Publish(ctx, "jobs.matched", []byte(`{"job":"1"}`), map[string]string{"source": "matcher"})
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, "jobs.matched", m.Topic)
		assert.JSONEq(t, `{"job":"1"}`, string(m.Payload))
		assert.Equal(t, "matcher", m.Attributes["source"])
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.PublishedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestBrokerTopicIsolation(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	ctx := context.Background()

	var calls sync.Map
	_, err := b.Subscribe(ctx, "topic.a", func(_ context.Context, m *Message) error {
		calls.Store(m.Topic, true)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "topic.b", []byte("x"), nil))
	require.NoError(t, b.Close()) // waits for in-flight handlers

	_, hit := calls.Load("topic.b")
	assert.False(t, hit, "handler must only see its own topic")
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBroker()
	defer b.Close()
	ctx := context.Background()

	received := make(chan *Message, 4)
	sub, err := b.Subscribe(ctx, "t", func(_ context.Context, m *Message) error {
		received <- m
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	assert.True(t, sub.IsClosed())

	require.NoError(t, b.Publish(ctx, "t", []byte("x"), nil))
	select {
	case <-received:
		t.Fatal("unsubscribed handler must not be invoked")
	case <-time.After(50 * time.Millisecond):
	}

	// Unsubscribe is idempotent.
	require.NoError(t, sub.Unsubscribe())
}

func TestBrokerPublishRacesClose(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	_, err := b.Subscribe(ctx, "t", func(context.Context, *Message) error { return nil })
	require.NoError(t, err)

	// Publishers racing Close must either deliver or get ErrBrokerClosed;
	// shutdown must not crash on handler bookkeeping.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if err := b.Publish(ctx, "t", []byte("x"), nil); err != nil {
					assert.ErrorIs(t, err, ErrBrokerClosed)
					return
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, b.Close())
	wg.Wait()
}

func TestBrokerClosedRejectsOperations(t *testing.T) {
	b := newTestBroker()
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), "t", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrBrokerClosed)

	_, err = b.Subscribe(context.Background(), "t", func(context.Context, *Message) error { return nil })
	assert.ErrorIs(t, err, ErrBrokerClosed)

	// Double close is a no-op.
	require.NoError(t, b.Close())
}
