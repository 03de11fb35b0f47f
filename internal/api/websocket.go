package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trade-journal-bot/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventHub fans engine events out to connected websocket clients. Clients
// that cannot keep up are dropped.
type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan events.Event
	closed  bool
	logger  zerolog.Logger
}

func newEventHub(logger zerolog.Logger) *eventHub {
	return &eventHub{
		clients: make(map[*websocket.Conn]chan events.Event),
		logger:  logger.With().Str("component", "event_hub").Logger(),
	}
}

func (h *eventHub) add(conn *websocket.Conn) chan events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan events.Event, 32)
	h.clients[conn] = ch
	return ch
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
}

// broadcast queues an event for every client without blocking the
// publisher.
func (h *eventHub) broadcast(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.clients, conn)
			h.logger.Warn().Msg("slow websocket client dropped")
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		close(ch)
		delete(h.clients, conn)
		conn.Close()
	}
}

// handleWebSocket upgrades the connection and streams engine events until
// the client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := s.hub.add(conn)
	if ch == nil {
		conn.Close()
		return
	}

	// Reader goroutine detects client disconnects.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for event := range ch {
			if err := conn.WriteJSON(event); err != nil {
				s.hub.remove(conn)
				return
			}
		}
	}()
}
