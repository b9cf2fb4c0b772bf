package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/readiness"
	"github.com/ayusman/mudra/internal/server/api"
)

const (
	writeWait      = 2 * time.Second
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	EventTransform = "transform"
	EventReadiness = "readiness"
)

// TransformEvent carries the latest transform, null when no control hand is
// visible.
type TransformEvent struct {
	Type      string             `json:"type"`
	Transform *gesture.Transform `json:"transform"`
}

type ReadinessEvent struct {
	Type      string            `json:"type"`
	Readiness api.ReadinessView `json:"readiness"`
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// EventsHandler pushes transform and readiness changes to websocket clients.
// Transforms are throttled per client; readiness changes always go out.
type EventsHandler struct {
	pipeline api.Pipeline
	rateHz   float64

	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	wasEmpty bool
}

// NewEventsHandler subscribes to p and pushes at most rateHz transforms
// per second to each client.
func NewEventsHandler(p api.Pipeline, rateHz float64) *EventsHandler {
	if rateHz <= 0 {
		rateHz = 30
	}
	h := &EventsHandler{
		pipeline: p,
		rateHz:   rateHz,
		clients:  make(map[*wsClient]struct{}),
		wasEmpty: true,
	}
	p.Controller().Subscribe(h.onTransform)
	p.Readiness().Subscribe(h.onReadiness)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, clientSendSize),
		limiter: rate.NewLimiter(rate.Limit(h.rateHz), 1),
	}

	// New clients start from the current state.
	if msg, err := json.Marshal(readinessEvent(h.pipeline.Readiness().Snapshot())); err == nil {
		c.send <- msg
	}
	if msg, err := json.Marshal(TransformEvent{Type: EventTransform, Transform: h.pipeline.Controller().Latest()}); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	<-done
}

func (h *EventsHandler) writeLoop(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Drain so the broadcaster never blocks; the read loop will
			// notice the broken connection and unregister.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// onTransform runs on the frame loop goroutine for every frame. A run of
// empty frames is sent once.
func (h *EventsHandler) onTransform(t *gesture.Transform) {
	h.mu.Lock()
	if t == nil && h.wasEmpty {
		h.mu.Unlock()
		return
	}
	h.wasEmpty = t == nil
	h.mu.Unlock()

	msg, err := json.Marshal(TransformEvent{Type: EventTransform, Transform: t})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if t != nil && !c.limiter.Allow() {
			continue
		}
		trySend(c, msg)
	}
}

func (h *EventsHandler) onReadiness(snap readiness.Snapshot) {
	msg, err := json.Marshal(readinessEvent(snap))
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		trySend(c, msg)
	}
}

func readinessEvent(snap readiness.Snapshot) ReadinessEvent {
	return ReadinessEvent{Type: EventReadiness, Readiness: api.NewReadinessView(snap)}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// trySend drops msg when the client is not keeping up.
func trySend(c *wsClient, msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}
