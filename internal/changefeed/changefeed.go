// Package changefeed pushes entity change notifications to connected clients
// over WebSocket, so their mirror caches can invalidate without polling.
package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brainbox-app/brainbox/internal/models"
)

// Action describes what happened to an entity.
type Action string

const (
	ActionHello   Action = "hello"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is one change notification. Hello events carry no entity.
type Event struct {
	Kind   models.Kind `json:"kind,omitempty"`
	ID     string      `json:"id,omitempty"`
	Owner  string      `json:"owner,omitempty"`
	Action Action      `json:"action"`
	At     time.Time   `json:"at"`
}

// visibleTo reports whether a subscriber identified by owner should see e.
// Posts are public, everything else is private to its owner.
func (e Event) visibleTo(owner string) bool {
	return e.Owner == owner || e.Kind == models.KindPost
}

type subscriber struct {
	conn  *websocket.Conn
	owner string
}

// Hub fans events out to subscribers.
type Hub struct {
	clients   map[*subscriber]bool
	clientsMu sync.RWMutex

	broadcast chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
	gauge  prometheus.Gauge
}

// NewHub starts the broadcast loop. gauge may be nil.
func NewHub(logger *slog.Logger, gauge prometheus.Gauge) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:   make(map[*subscriber]bool),
		broadcast: make(chan Event, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		gauge:     gauge,
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Publish queues an event. It never blocks; events are dropped when the queue is full.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- e:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("Change feed queue full, dropping event", "kind", e.Kind, "id", e.ID)
	}
}

// Close disconnects every subscriber and stops the broadcast loop.
func (h *Hub) Close() {
	h.cancel()

	h.clientsMu.Lock()
	for c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	h.clientsMu.Unlock()
	h.setGauge(0)

	h.wg.Wait()
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Handler upgrades requests to WebSocket subscriptions. owner resolves the
// caller's owner key, normally from the authenticated request context.
func (h *Hub) Handler(owner func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := owner(r)
		if key == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			h.logger.Warn("WebSocket upgrade failed", "error", err)
			return
		}

		sub := &subscriber{conn: conn, owner: key}
		h.clientsMu.Lock()
		h.clients[sub] = true
		count := len(h.clients)
		h.clientsMu.Unlock()
		h.setGauge(count)

		h.logger.Info("Change feed subscriber connected", "owner", key, "total", count)

		h.send(sub, Event{Action: ActionHello, Owner: key, At: time.Now().UTC()})

		// The read loop notices disconnects; client messages are ignored.
		h.readLoop(sub)
	})
}

func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case e := <-h.broadcast:
			h.clientsMu.RLock()
			targets := make([]*subscriber, 0, len(h.clients))
			for c := range h.clients {
				if e.visibleTo(c.owner) {
					targets = append(targets, c)
				}
			}
			h.clientsMu.RUnlock()

			for _, c := range targets {
				h.send(c, e)
			}
		}
	}
}

func (h *Hub) send(sub *subscriber, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to marshal event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	if err := sub.conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("Failed to send to subscriber", "owner", sub.owner, "error", err)
		h.remove(sub)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.clientsMu.Lock()
	if _, ok := h.clients[sub]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, sub)
	count := len(h.clients)
	h.clientsMu.Unlock()
	h.setGauge(count)

	_ = sub.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("Change feed subscriber disconnected", "owner", sub.owner, "total", count)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}
