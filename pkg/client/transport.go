package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/atefhejazi1/job-kit-sub001/internal/api/dto"
	"github.com/atefhejazi1/job-kit-sub001/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTPAPI implements API against the notification REST endpoints.
type HTTPAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPAPI creates a REST client. baseURL is the server root, without a
// trailing slash; token is the bearer token of the authenticated user.
func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// List fetches one page of notifications plus the authoritative count.
func (a *HTTPAPI) List(ctx context.Context, page, pageSize int) (*ListPage, error) {
	endpoint := fmt.Sprintf("%s/api/notifications?page=%d&page_size=%d", a.baseURL, page, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list notifications: unexpected status %d", resp.StatusCode)
	}

	var body dto.NotificationListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}

	items := make([]notification.Notification, len(body.Items))
	for i, item := range body.Items {
		items[i] = item.ToModel()
	}
	return &ListPage{
		Items:       items,
		UnreadCount: body.UnreadCount,
		Page:        body.Page,
		TotalPages:  body.TotalPages,
	}, nil
}

// MarkAsRead flips one notification to read.
func (a *HTTPAPI) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodPut, fmt.Sprintf("/api/notifications/%s/read", id))
}

// MarkAllAsRead flips every notification to read.
func (a *HTTPAPI) MarkAllAsRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPut, "/api/notifications/read-all")
}

// Delete removes one notification.
func (a *HTTPAPI) Delete(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/notifications/%s", id))
}

// ClearAll removes every notification.
func (a *HTTPAPI) ClearAll(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/api/notifications")
}

func (a *HTTPAPI) do(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}

func (a *HTTPAPI) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")
}

// WebSocketStream implements Stream over the notification WebSocket
// endpoint. Each Connect dials a fresh connection; the returned channel
// closes when the connection drops.
type WebSocketStream struct {
	wsURL string
	token string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketStream creates a stream. baseURL is the server root with an
// http or https scheme; it is rewritten to ws or wss.
func NewWebSocketStream(baseURL, token string) (*WebSocketStream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/notifications/ws"
	return &WebSocketStream{wsURL: u.String(), token: token}, nil
}

// Connect dials the push endpoint and starts decoding events. The returned
// channel closes on any read error; the engine reconnects.
func (s *WebSocketStream) Connect(ctx context.Context) (<-chan notification.Event, error) {
	endpoint := s.wsURL + "?token=" + url.QueryEscape(s.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial push stream: %w", err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	events := make(chan notification.Event, 16)
	go func() {
		defer close(events)
		for {
			var event notification.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// Close tears down the current connection, if any.
func (s *WebSocketStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

var _ API = (*HTTPAPI)(nil)
var _ Stream = (*WebSocketStream)(nil)
