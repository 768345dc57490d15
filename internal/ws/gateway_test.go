package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/logging"
	"github.com/atriumhub/atrium/internal/storage"
)

type recordingEcho struct {
	mu      sync.Mutex
	agentID string
	content string
	calls   int
}

func (e *recordingEcho) HandleEcho(_ context.Context, agentID, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agentID = agentID
	e.content = content
	e.calls++
	return nil
}

func (e *recordingEcho) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func dialGateway(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestGatewayDeliversRoomEventsAfterRegister(t *testing.T) {
	b := bus.New()
	store := storage.NewInMemory()
	gw := New(b, store, nil, logging.New(logging.LevelError))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialGateway(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(context.Background(), conn, inboundFrame{Event: "register", AgentID: "a1", Room: "lab"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Wait until the server has processed the register frame before
	// publishing: register subscribes to the bus before it opens the session
	// row. A timed-out websocket read closes the connection, so the event is
	// read once, with a single generous deadline.
	deadline := time.Now().Add(time.Second)
	for {
		sessions, err := store.ActiveSessionsForAgent(context.Background(), "a1")
		if err != nil {
			t.Fatalf("active sessions: %v", err)
		}
		if len(sessions) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for register to be processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Publish("lab", core.Event{Kind: core.EventMessage, Message: &core.Message{Content: "hello"}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt core.Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("timed out waiting for room event: %v", err)
	}
	if evt.Message == nil || evt.Message.Content != "hello" {
		t.Fatalf("expected relayed content, got %+v", evt.Message)
	}
}

func TestGatewayRegisterOpensAndCloseClosesSession(t *testing.T) {
	b := bus.New()
	store := storage.NewInMemory()
	gw := New(b, store, nil, logging.New(logging.LevelError))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialGateway(t, srv)
	if err := wsjson.Write(context.Background(), conn, inboundFrame{Event: "register", AgentID: "a1", Room: "lab"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var sessionID string
	deadline := time.Now().Add(time.Second)
	for {
		sessions, err := store.ActiveSessionsForAgent(context.Background(), "a1")
		if err != nil {
			t.Fatalf("active sessions: %v", err)
		}
		if len(sessions) == 1 {
			sessionID = sessions[0].ID
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for session to open")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close(websocket.StatusNormalClosure, "done")

	deadline = time.Now().Add(time.Second)
	for {
		sessions, err := store.ActiveSessionsForAgent(context.Background(), "a1")
		if err != nil {
			t.Fatalf("active sessions: %v", err)
		}
		if len(sessions) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for session %q to close", sessionID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGatewayMessageFrameInvokesEcho(t *testing.T) {
	b := bus.New()
	store := storage.NewInMemory()
	echo := &recordingEcho{}
	gw := New(b, store, echo, logging.New(logging.LevelError))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialGateway(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(context.Background(), conn, inboundFrame{Event: "register", AgentID: "a1", Room: "lab"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Register is processed before the next frame since both are read off
	// the same connection in order.
	if err := wsjson.Write(context.Background(), conn, inboundFrame{Event: "message", Content: "hi there"}); err != nil {
		t.Fatalf("message: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for echo.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for echo handler to be invoked")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if echo.agentID != "a1" || echo.content != "hi there" {
		t.Fatalf("unexpected echo call: agent=%q content=%q", echo.agentID, echo.content)
	}
}

func TestGatewayMessageFrameIgnoredBeforeRegister(t *testing.T) {
	b := bus.New()
	store := storage.NewInMemory()
	echo := &recordingEcho{}
	gw := New(b, store, echo, logging.New(logging.LevelError))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialGateway(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(context.Background(), conn, inboundFrame{Event: "message", Content: "too early"}); err != nil {
		t.Fatalf("message: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if echo.count() != 0 {
		t.Fatalf("expected echo handler untouched before register, got %d calls", echo.count())
	}
}
