package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/idps-compare/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only status stream for local dashboards
	},
}

// Hub maintains the set of active websocket clients and broadcasts
// per-parser progress to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	log       logging.Sink
}

// NewHub builds a Hub; call Run in its own goroutine before Subscribe.
func NewHub(log logging.Sink) *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log,
	}
}

// Run drains the broadcast channel, pushing each message to every
// connected client. Blocked clients are disconnected rather than allowed
// to hang the hub.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an incoming HTTP request to a websocket and adds it
// to the client set. Clients are push-only; reads are drained solely to
// detect disconnects.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Emit(logging.Record{
				Component: "StatusAPI",
				PlainText: "failed to upgrade websocket: " + err.Error(),
				Severity:  logging.Warn,
			})
		}
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast queues data for delivery to all connected clients. Drops the
// message when the queue is full so a slow dashboard can never stall the
// parsers feeding the sink.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
	}
}

// HubSink adapts the Hub into a logging.Sink so the orchestrator can wire
// it into the fanout: every log record a component emits is also pushed,
// JSON-encoded, to any dashboard tailing the run.
type HubSink struct {
	hub *Hub
}

// NewHubSink wraps hub as a Sink.
func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Emit implements logging.Sink.
func (s *HubSink) Emit(r logging.Record) {
	msg, err := json.Marshal(map[string]string{
		"component": r.Component,
		"text":      r.PlainText,
		"severity":  r.Severity.String(),
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(msg)
}
