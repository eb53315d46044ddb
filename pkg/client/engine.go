package client

import (
	"context"
	"sync"
	"time"

	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultRequestTimeout bounds each REST call made by the engine. The push
// channel carries no per-event timeout; events are fire-and-forget.
const defaultRequestTimeout = 10 * time.Second

// API is the REST surface the engine fetches from and mutates through.
type API interface {
	// List fetches one page of notifications together with the
	// authoritative unread count.
	List(ctx context.Context, page, pageSize int) (*ListPage, error)

	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClearAll(ctx context.Context) error
}

// ListPage is one page of the server-side list.
type ListPage struct {
	Items       []notification.Notification
	UnreadCount int64
	Page        int
	TotalPages  int
}

// Stream is the push-event source for one user. Connect returns a channel
// that closes when the underlying connection drops; the engine then
// reconnects and resynchronizes.
type Stream interface {
	Connect(ctx context.Context) (<-chan notification.Event, error)
	Close() error
}

// EngineConfig holds the configuration for a synchronization engine.
type EngineConfig struct {
	API      API
	Stream   Stream
	PageSize int
	// OnChange, if set, is invoked with a state snapshot after every
	// applied change. It runs on the engine's serialized update path and
	// must not call back into the engine.
	OnChange func(State)
	// RequestTimeout bounds each REST call; zero means the default.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Engine maintains one user's notification view against two independently
// arriving sources: paginated REST fetches and streamed push events. All
// state updates, from either source, pass through one mutex so a stale fetch
// can never interleave with a newer push. Push delivery is a hint; whenever
// the stream (re)connects the engine refetches page one and the count rather
// than trust accumulated state.
type Engine struct {
	api            API
	stream         Stream
	pageSize       int
	requestTimeout time.Duration
	onChange       func(State)
	logger         *zap.Logger

	mu    sync.Mutex
	state State
	// journal buffers pushed events while optimistic calls are in flight so
	// a rollback can replay them instead of discarding them.
	journal    []notification.Event
	journaling int
}

// NewEngine creates a synchronization engine.
func NewEngine(config EngineConfig) *Engine {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		api:            config.API,
		stream:         config.Stream,
		pageSize:       pageSize,
		requestTimeout: timeout,
		onChange:       config.OnChange,
		logger:         logger,
	}
}

// State returns a snapshot of the current client-visible state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Run connects the push stream and processes events until ctx is cancelled.
// On every (re)connect it resynchronizes from the REST API first, so state
// accumulated across a disconnect is never trusted. Stream failures degrade
// silently; the engine keeps retrying with backoff and REST keeps working.
func (e *Engine) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		events, err := e.stream.Connect(ctx)
		if err != nil {
			e.logger.Warn("push stream connect failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		// Full resync on every connect: the push channel gives no
		// missed-event detection, so the durable store is re-read.
		if err := e.Refresh(ctx); err != nil {
			e.logger.Warn("resync fetch failed", zap.Error(err))
		}

		if err := e.consume(ctx, events); err != nil {
			return err
		}
		e.logger.Info("push stream disconnected, reconnecting")
	}
}

// consume drains one connection's event channel. Returns a non-nil error
// only on context cancellation; a closed channel means reconnect.
func (e *Engine) consume(ctx context.Context, events <-chan notification.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			e.applyStreamEvent(event)
		}
	}
}

// Refresh fetches page one and the authoritative count, fully replacing the
// in-memory state. A fetch failure surfaces on State.Err and leaves items
// and count untouched.
func (e *Engine) Refresh(ctx context.Context) error {
	e.update(func(s *State) { s.Loading = true })

	page, err := e.fetchPage(ctx, 1)
	if err != nil {
		e.update(func(s *State) {
			s.Loading = false
			s.Err = err
		})
		return err
	}

	e.update(func(s *State) {
		s.Loading = false
		s.replace(page.Items, page.UnreadCount, page.TotalPages > 1)
	})
	return nil
}

// LoadMore appends the next page to the held list. Items already present
// (for example, pushed while the fetch was in flight) are skipped.
func (e *Engine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if !e.state.HasMore || e.state.Loading {
		e.mu.Unlock()
		return nil
	}
	next := e.state.Page + 1
	e.state.Loading = true
	e.mu.Unlock()
	e.notify()

	page, err := e.fetchPage(ctx, next)
	if err != nil {
		e.update(func(s *State) {
			s.Loading = false
			s.Err = err
		})
		return err
	}

	e.update(func(s *State) {
		s.Loading = false
		s.appendPage(page.Items, page.UnreadCount, page.Page, page.Page < page.TotalPages)
	})
	return nil
}

// MarkAsRead optimistically flips one held item to read and issues the REST
// call. On failure the previous state is restored; the dispatcher's own echo
// of the event is not waited for.
func (e *Engine) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return e.optimistic(ctx,
		func(s *State) { s.optimisticMarkRead(id) },
		func(ctx context.Context) error { return e.api.MarkAsRead(ctx, id) })
}

// MarkAllAsRead optimistically flips every held item to read.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	return e.optimistic(ctx,
		func(s *State) { s.optimisticMarkAllRead() },
		e.api.MarkAllAsRead)
}

// Delete optimistically removes one held item.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	return e.optimistic(ctx,
		func(s *State) { s.optimisticDelete(id) },
		func(ctx context.Context) error { return e.api.Delete(ctx, id) })
}

// ClearAll optimistically empties the list.
func (e *Engine) ClearAll(ctx context.Context) error {
	return e.optimistic(ctx, func(s *State) { s.optimisticClear() }, e.api.ClearAll)
}

// optimistic applies a local mutation, issues the REST call, and rolls the
// local mutation back if the call fails so the item appears unchanged.
// Events pushed while the call is in flight are replayed over the restored
// snapshot rather than discarded with it.
func (e *Engine) optimistic(ctx context.Context, apply func(*State), call func(context.Context) error) error {
	e.mu.Lock()
	snapshot := e.state.clone()
	apply(&e.state)
	e.journaling++
	mark := len(e.journal)
	e.mu.Unlock()
	e.notify()

	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	err := call(reqCtx)

	e.mu.Lock()
	replayed := e.journal[mark:]
	e.journaling--
	if e.journaling == 0 {
		e.journal = nil
	}
	if err == nil {
		e.mu.Unlock()
		return nil
	}
	e.state = snapshot
	for _, event := range replayed {
		e.state.applyEvent(event)
	}
	e.state.Err = err
	e.mu.Unlock()
	e.notify()
	return err
}

// applyStreamEvent applies one pushed event on the serialized update path,
// journaling it when an optimistic call is in flight.
func (e *Engine) applyStreamEvent(event notification.Event) {
	e.mu.Lock()
	if e.journaling > 0 {
		e.journal = append(e.journal, event)
	}
	e.state.applyEvent(event)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) fetchPage(ctx context.Context, page int) (*ListPage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()
	return e.api.List(reqCtx, page, e.pageSize)
}

// update runs a mutation on the serialized state-update path.
func (e *Engine) update(mutate func(*State)) {
	e.mu.Lock()
	mutate(&e.state)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) notify() {
	if e.onChange == nil {
		return
	}
	e.onChange(e.State())
}
