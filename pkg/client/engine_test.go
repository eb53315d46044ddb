package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a scriptable API implementation. Unset functions succeed.
type fakeAPI struct {
	mu          sync.Mutex
	listFn      func(page, pageSize int) (*ListPage, error)
	markFn      func(id uuid.UUID) error
	markAllFn   func() error
	deleteFn    func(id uuid.UUID) error
	clearFn     func() error
	listCalls   int
	markedIDs   []uuid.UUID
	deletedIDs  []uuid.UUID
	markAllHits int
	clearHits   int
}

func (a *fakeAPI) List(_ context.Context, page, pageSize int) (*ListPage, error) {
	a.mu.Lock()
	a.listCalls++
	fn := a.listFn
	a.mu.Unlock()
	if fn != nil {
		return fn(page, pageSize)
	}
	return &ListPage{Page: page, TotalPages: 1}, nil
}

func (a *fakeAPI) MarkAsRead(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markedIDs = append(a.markedIDs, id)
	if a.markFn != nil {
		return a.markFn(id)
	}
	return nil
}

func (a *fakeAPI) MarkAllAsRead(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markAllHits++
	if a.markAllFn != nil {
		return a.markAllFn()
	}
	return nil
}

func (a *fakeAPI) Delete(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deletedIDs = append(a.deletedIDs, id)
	if a.deleteFn != nil {
		return a.deleteFn(id)
	}
	return nil
}

func (a *fakeAPI) ClearAll(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearHits++
	if a.clearFn != nil {
		return a.clearFn()
	}
	return nil
}

func (a *fakeAPI) listCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls
}

// fakeStream hands out a fresh channel per Connect.
type fakeStream struct {
	mu       sync.Mutex
	current  chan notification.Event
	connects int
}

func (s *fakeStream) Connect(_ context.Context) (<-chan notification.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.current = make(chan notification.Event, 16)
	return s.current, nil
}

func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) push(event notification.Event) {
	s.mu.Lock()
	ch := s.current
	s.mu.Unlock()
	ch <- event
}

func (s *fakeStream) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.current)
}

func (s *fakeStream) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func TestEngineRefreshReplacesState(t *testing.T) {
	items := []notification.Notification{makeItem(false), makeItem(true)}
	api := &fakeAPI{
		listFn: func(page, pageSize int) (*ListPage, error) {
			return &ListPage{Items: items, UnreadCount: 1, Page: page, TotalPages: 2}, nil
		},
	}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})

	require.NoError(t, engine.Refresh(context.Background()))

	state := engine.State()
	assert.Len(t, state.Items, 2)
	assert.Equal(t, int64(1), state.UnreadCount)
	assert.Equal(t, 1, state.Page)
	assert.True(t, state.HasMore)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
}

func TestEngineRefreshFailureKeepsItems(t *testing.T) {
	held := makeItem(false)
	fetchErr := errors.New("server unavailable")
	api := &fakeAPI{}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})

	engine.update(func(s *State) {
		s.Items = []notification.Notification{held}
		s.UnreadCount = 1
	})

	api.mu.Lock()
	api.listFn = func(page, pageSize int) (*ListPage, error) { return nil, fetchErr }
	api.mu.Unlock()

	err := engine.Refresh(context.Background())
	assert.ErrorIs(t, err, fetchErr)

	state := engine.State()
	assert.Len(t, state.Items, 1, "a failed fetch leaves held items alone")
	assert.Equal(t, int64(1), state.UnreadCount)
	assert.ErrorIs(t, state.Err, fetchErr)
	assert.False(t, state.Loading)
}

func TestEngineLoadMoreAppends(t *testing.T) {
	page1 := []notification.Notification{makeItem(false), makeItem(false)}
	page2 := []notification.Notification{page1[1], makeItem(false)} // one overlap
	api := &fakeAPI{
		listFn: func(page, pageSize int) (*ListPage, error) {
			if page == 1 {
				return &ListPage{Items: page1, UnreadCount: 3, Page: 1, TotalPages: 2}, nil
			}
			return &ListPage{Items: page2, UnreadCount: 3, Page: 2, TotalPages: 2}, nil
		},
	}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})

	require.NoError(t, engine.Refresh(context.Background()))
	require.NoError(t, engine.LoadMore(context.Background()))

	state := engine.State()
	assert.Len(t, state.Items, 3, "overlapping item is not duplicated")
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.HasMore)

	// Nothing more to load; the API must not be hit again.
	calls := api.listCallCount()
	require.NoError(t, engine.LoadMore(context.Background()))
	assert.Equal(t, calls, api.listCallCount())
}

func TestEngineMarkAsReadOptimistic(t *testing.T) {
	item := makeItem(false)
	api := &fakeAPI{}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})
	engine.update(func(s *State) {
		s.Items = []notification.Notification{item}
		s.UnreadCount = 1
	})

	require.NoError(t, engine.MarkAsRead(context.Background(), item.ID))

	state := engine.State()
	assert.True(t, state.Items[0].IsRead)
	assert.Equal(t, int64(0), state.UnreadCount)
	assert.Equal(t, []uuid.UUID{item.ID}, api.markedIDs)
}

func TestEngineMarkAsReadRollsBackOnFailure(t *testing.T) {
	item := makeItem(false)
	callErr := errors.New("boom")
	api := &fakeAPI{markFn: func(uuid.UUID) error { return callErr }}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})
	engine.update(func(s *State) {
		s.Items = []notification.Notification{item}
		s.UnreadCount = 1
	})

	err := engine.MarkAsRead(context.Background(), item.ID)
	assert.ErrorIs(t, err, callErr)

	state := engine.State()
	assert.False(t, state.Items[0].IsRead, "failed call restores the snapshot")
	assert.Nil(t, state.Items[0].ReadAt)
	assert.Equal(t, int64(1), state.UnreadCount)
	assert.ErrorIs(t, state.Err, callErr)
}

func TestEngineDeleteRollsBackOnFailure(t *testing.T) {
	item := makeItem(false)
	callErr := errors.New("boom")
	api := &fakeAPI{deleteFn: func(uuid.UUID) error { return callErr }}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})
	engine.update(func(s *State) {
		s.Items = []notification.Notification{item}
		s.UnreadCount = 1
	})

	err := engine.Delete(context.Background(), item.ID)
	assert.ErrorIs(t, err, callErr)

	state := engine.State()
	require.Len(t, state.Items, 1, "deleted item reappears on rollback")
	assert.Equal(t, item.ID, state.Items[0].ID)
	assert.Equal(t, int64(1), state.UnreadCount)
}

func TestEngineRollbackKeepsEventsPushedDuringCall(t *testing.T) {
	item := makeItem(false)
	callErr := errors.New("boom")
	release := make(chan struct{})
	api := &fakeAPI{
		listFn: func(page, pageSize int) (*ListPage, error) {
			return &ListPage{Items: []notification.Notification{item}, UnreadCount: 1, Page: 1, TotalPages: 1}, nil
		},
		markFn: func(uuid.UUID) error {
			<-release
			return callErr
		},
	}
	stream := &fakeStream{}
	engine := NewEngine(EngineConfig{API: api, Stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	require.Eventually(t, func() bool {
		return len(engine.State().Items) == 1
	}, time.Second, 5*time.Millisecond)

	markDone := make(chan error, 1)
	go func() { markDone <- engine.MarkAsRead(context.Background(), item.ID) }()
	require.Eventually(t, func() bool {
		state := engine.State()
		return len(state.Items) == 1 && state.Items[0].IsRead
	}, time.Second, 5*time.Millisecond)

	// A push lands while the REST call is still in flight.
	pushed := makeItem(false)
	stream.push(notification.NewNotificationEvent(&pushed))
	require.Eventually(t, func() bool {
		return len(engine.State().Items) == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	assert.ErrorIs(t, <-markDone, callErr)

	state := engine.State()
	require.Len(t, state.Items, 2, "event pushed during the failed call survives the rollback")
	assert.Equal(t, pushed.ID, state.Items[0].ID)
	assert.False(t, state.Items[1].IsRead, "failed mark is reverted")
	assert.Equal(t, int64(2), state.UnreadCount)
	assert.ErrorIs(t, state.Err, callErr)
}

func TestEngineClearAll(t *testing.T) {
	api := &fakeAPI{}
	engine := NewEngine(EngineConfig{API: api, Stream: &fakeStream{}})
	engine.update(func(s *State) {
		s.Items = []notification.Notification{makeItem(false), makeItem(true)}
		s.UnreadCount = 1
	})

	require.NoError(t, engine.ClearAll(context.Background()))

	state := engine.State()
	assert.Empty(t, state.Items)
	assert.Equal(t, int64(0), state.UnreadCount)
	assert.Equal(t, 1, api.clearHits)
}

func TestEngineOnChangeObservesUpdates(t *testing.T) {
	var mu sync.Mutex
	var seen []int64
	api := &fakeAPI{
		listFn: func(page, pageSize int) (*ListPage, error) {
			return &ListPage{UnreadCount: 4, Page: 1, TotalPages: 1}, nil
		},
	}
	engine := NewEngine(EngineConfig{
		API:    api,
		Stream: &fakeStream{},
		OnChange: func(s State) {
			mu.Lock()
			seen = append(seen, s.UnreadCount)
			mu.Unlock()
		},
	})

	require.NoError(t, engine.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, int64(4), seen[len(seen)-1])
}

func TestEngineRunResyncsOnEveryConnect(t *testing.T) {
	api := &fakeAPI{
		listFn: func(page, pageSize int) (*ListPage, error) {
			return &ListPage{UnreadCount: 0, Page: 1, TotalPages: 1}, nil
		},
	}
	stream := &fakeStream{}
	engine := NewEngine(EngineConfig{API: api, Stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- engine.Run(ctx) }()

	require.Eventually(t, func() bool { return stream.connectCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return api.listCallCount() == 1 }, time.Second, 5*time.Millisecond)

	// A pushed event lands in state.
	fresh := makeItem(false)
	stream.push(notification.NewNotificationEvent(&fresh))
	require.Eventually(t, func() bool {
		state := engine.State()
		return len(state.Items) == 1 && state.Items[0].ID == fresh.ID
	}, time.Second, 5*time.Millisecond)

	// Dropping the connection triggers a reconnect and a fresh resync that
	// discards whatever was accumulated.
	stream.drop()
	require.Eventually(t, func() bool { return stream.connectCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return api.listCallCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(engine.State().Items) == 0 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
