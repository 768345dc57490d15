// Package ws implements the push-session transport: one /ws endpoint,
// binding a connection to (agentId, room) on its first register frame and
// then streaming bus events to it.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/logging"
	"github.com/atriumhub/atrium/internal/storage"
)

const writeTimeout = 5 * time.Second

// EchoHandler re-emits a push session's inbound "message" frame through the
// same path as the request/response send operation. Kept for compatibility
// with clients that prefer to send over the socket; not the primary send
// path (§4.9).
type EchoHandler interface {
	HandleEcho(ctx context.Context, agentID, content string) error
}

// inboundFrame covers every shape a client may send: register{agentId,room}
// or message{content}.
type inboundFrame struct {
	Event   string `json:"event"`
	AgentID string `json:"agentId"`
	Room    string `json:"room"`
	Content string `json:"content"`
}

// Gateway accepts WebSocket connections and bridges them to the bus.
type Gateway struct {
	bus   *bus.Bus
	store storage.Store
	echo  EchoHandler
	log   *logging.Logger
}

// New creates a Gateway. echo may be nil to disable the inbound message
// echo path.
func New(b *bus.Bus, store storage.Store, echo EchoHandler, log *logging.Logger) *Gateway {
	return &Gateway{bus: b, store: store, echo: echo, log: log}
}

// session is one accepted connection, subscribed to at most one room and
// one agent at a time. Deliver serializes writes since the bus may call it
// from the room-publish and the agent-publish paths concurrently.
type session struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	agentID   string
	room      string
	sessionID string
}

func (s *session) Deliver(event core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, s.conn, event)
}

// Handler accepts and services connections on /ws.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionContextTakeover,
		})
		if err != nil {
			return
		}
		sess := &session{conn: conn}
		defer g.teardown(context.Background(), sess)

		ctx := r.Context()
		for {
			var frame inboundFrame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return
			}
			switch frame.Event {
			case "register":
				if frame.AgentID == "" || frame.Room == "" {
					continue
				}
				g.register(ctx, sess, frame.AgentID, frame.Room)
			case "message":
				if sess.agentID == "" || g.echo == nil {
					continue
				}
				if err := g.echo.HandleEcho(ctx, sess.agentID, frame.Content); err != nil {
					g.log.Warnf(logging.Op(sess.room, sess.agentID, "ws_echo"), "%v", err)
				}
			}
		}
	}
}

func (g *Gateway) register(ctx context.Context, sess *session, agentID, room string) {
	if sess.agentID != "" {
		g.bus.Unsubscribe(sess)
	}
	sess.mu.Lock()
	sess.agentID = agentID
	sess.room = room
	sess.mu.Unlock()

	g.bus.SubscribeRoom(room, sess)
	g.bus.SubscribeAgent(agentID, sess)

	saved, err := g.store.OpenSession(ctx, core.Session{AgentID: agentID, Room: room})
	if err != nil {
		g.log.Warnf(logging.Op(room, agentID, "ws_register"), "%v", err)
		return
	}
	sess.mu.Lock()
	sess.sessionID = saved.ID
	sess.mu.Unlock()
}

func (g *Gateway) teardown(ctx context.Context, sess *session) {
	g.bus.Unsubscribe(sess)
	sess.mu.Lock()
	sessionID := sess.sessionID
	sess.mu.Unlock()
	if sessionID != "" {
		if err := g.store.CloseSession(ctx, sessionID); err != nil {
			g.log.Warnf(logging.Op(sess.room, sess.agentID, "ws_close"), "%v", err)
		}
	}
	sess.conn.Close(websocket.StatusNormalClosure, "")
}
