package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is a message pushed to every websocket client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event types.
const (
	EventState    = "state"    // the book changed
	EventProgress = "progress" // an analysis phase finished
	EventAnalysis = "analysis" // an analysis was stored
	EventPing     = "ping"
)

// Hub keeps track of websocket clients and broadcasts events to them.
type Hub struct {
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte

	done    chan struct{} // closed when Run returns
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     zerolog.Logger
}

var upgrader = websocket.Upgrader{
	// single user, local first: any origin may connect
	CheckOrigin: func(r *http.Request) bool { return true },
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]bool),
		log:        logger.With().Str("component", "hub").Logger(),
	}
}

// Run serves the hub channels until ctx is done. A ping is broadcast every
// heartbeat if it is positive. Run must be called once.
func (h *Hub) Run(ctx context.Context, heartbeat time.Duration) {
	defer close(h.done)
	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.Register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("client connected")

		case conn := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("client disconnected")

		case message := <-h.Broadcast:
			h.write(message)

		case <-tick:
			if msg, err := json.Marshal(Event{Type: EventPing}); err == nil {
				h.write(msg)
			}
		}
	}
}

func (h *Hub) write(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send queues an event for broadcast. It never blocks: the event is dropped
// if the hub is not keeping up.
func (h *Hub) Send(typ string, data any) {
	msg, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", typ).Msg("cannot encode event")
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		h.log.Warn().Str("type", typ).Msg("hub busy, event dropped")
	}
}

// ServeWS upgrades the request and registers the connection until the client
// goes away. Once the hub is stopped connections are closed right away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	select {
	case h.Register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.Unregister <- conn:
			case <-h.done:
				conn.Close()
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
