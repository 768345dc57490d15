// Package client provides a Go client for the Atrium coordination hub.
// This file contains the push-session transport: one /ws connection bound
// to an (agentId, room) pair, streaming bus events as they arrive.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event mirrors the envelope the hub's bus fans out over a push session.
type Event struct {
	Kind         string        `json:"event"`
	Room         string        `json:"room,omitempty"`
	Message      *Message      `json:"message,omitempty"`
	Task         *Task         `json:"task,omitempty"`
	TaskAction   string        `json:"taskAction,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// EventHandler is called for each event received over a push session.
type EventHandler func(event Event)

// PushSession manages one /ws connection bound to an agent and room.
type PushSession struct {
	baseURL   string
	conn      *websocket.Conn
	handlers  []EventHandler
	mu        sync.RWMutex
	done      chan struct{}
	reconnect bool
	agentID   string
	room      string
}

// PushOption configures a PushSession.
type PushOption func(*PushSession)

// WithAutoReconnect enables automatic reconnection with backoff on
// disconnect.
func WithAutoReconnect(enabled bool) PushOption {
	return func(s *PushSession) {
		s.reconnect = enabled
	}
}

// NewPushSession creates a push session against baseURL, an http(s) URL for
// the hub's REST API; the websocket scheme and /ws path are derived from it.
func NewPushSession(baseURL string, opts ...PushOption) *PushSession {
	s := &PushSession{
		baseURL:   baseURL,
		done:      make(chan struct{}),
		reconnect: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnEvent registers an event handler. Handlers are called in the order
// registered, on the session's single read goroutine.
func (s *PushSession) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Connect dials the hub and sends the register frame for (agentID, room).
func (s *PushSession) Connect(ctx context.Context, agentID, room string) error {
	wsURL, err := s.buildWSURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	s.agentID = agentID
	s.room = room

	if err := wsjson.Write(ctx, conn, map[string]string{
		"event": "register", "agentId": agentID, "room": room,
	}); err != nil {
		conn.Close(websocket.StatusInternalError, "register failed")
		return fmt.Errorf("send register frame: %w", err)
	}

	go s.readLoop(ctx)
	return nil
}

// SendEcho pushes a message frame over the socket. The hub's gateway hands
// such frames to its EchoHandler when one is configured and ignores them
// otherwise; the gateways built by `atriumd serve` and pkg/embedded have no
// EchoHandler, so there the frame is not re-emitted to any room.
func (s *PushSession) SendEcho(ctx context.Context, content string) error {
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	return wsjson.Write(ctx, s.conn, map[string]string{"event": "message", "content": content})
}

// Close closes the push session.
func (s *PushSession) Close() error {
	close(s.done)
	if s.conn != nil {
		return s.conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (s *PushSession) buildWSURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	return u.String(), nil
}

func (s *PushSession) readLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		var event Event
		if err := wsjson.Read(ctx, s.conn, &event); err != nil {
			if s.reconnect {
				select {
				case <-s.done:
					return
				default:
					// A successful reconnect starts a new read loop via
					// Connect, so this one ends here.
					s.handleReconnect(ctx)
					return
				}
			}
			return
		}
		s.dispatch(event)
	}
}

func (s *PushSession) dispatch(event Event) {
	s.mu.RLock()
	handlers := make([]EventHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

func (s *PushSession) handleReconnect(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err := s.Connect(ctx, s.agentID, s.room); err == nil {
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
