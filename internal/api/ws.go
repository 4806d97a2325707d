package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stuga/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The app is served from file:// and LAN origins; the API key guards
	// the REST surface and the socket only carries refresh hints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans change events out to connected WebSocket clients. Clients that
// cannot keep up are dropped rather than blocking the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan events.Event
	logger  zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan events.Event),
		logger:  logger.With().Str("component", "ws").Logger(),
	}
}

// Broadcast queues an event for every connected client. Satisfies
// events.Handler.
func (h *Hub) Broadcast(ev events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("slow websocket client, dropping")
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) chan events.Event {
	ch := make(chan events.Event, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// ClientCount reports connected clients, for readiness and tests.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleWS upgrades the connection and streams change events until the
// client disconnects.
func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := s.hub.add(conn)
	s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close frame.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			s.hub.remove(conn)
			return
		}
	}
}
