// Package broadcast pushes board events to connected clients. A Hub fans
// events out to WebSocket subscribers on this process; a RedisBridge relays
// events between processes over a pub/sub channel so every replica sees
// every board's traffic.
package broadcast

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one board change pushed to clients.
type Event struct {
	Type    string         `json:"type"`
	BoardID string         `json:"boardId"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Broadcaster is what the service layer emits events through.
type Broadcaster interface {
	Broadcast(event Event)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

type subscriber struct {
	boardID string
	send    chan Event
}

// Hub fans events out to subscribers grouped by board.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
	upgrader    websocket.Upgrader
}

func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Broadcast delivers the event to every subscriber of its board. Slow
// subscribers with a full buffer are skipped rather than blocking the rest.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[event.BoardID] {
		select {
		case sub.send <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one board and returns its event channel
// with a cancel func. Used by the WebSocket write loop and by tests.
func (h *Hub) Subscribe(boardID string) (<-chan Event, func()) {
	sub := &subscriber{boardID: boardID, send: make(chan Event, sendBufferSize)}
	h.mu.Lock()
	if h.subscribers[boardID] == nil {
		h.subscribers[boardID] = make(map[*subscriber]struct{})
	}
	h.subscribers[boardID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[boardID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, boardID)
			}
		}
		h.mu.Unlock()
	}
	return sub.send, cancel
}

// SubscriberCount reports how many clients listen on the board.
func (h *Hub) SubscriberCount(boardID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[boardID])
}

// ServeWS upgrades the request and streams the board's events until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, boardID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	events, cancel := h.Subscribe(boardID)
	defer cancel()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Read loop: clients send nothing meaningful, but reading keeps pong
	// handling alive and detects closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// NopBroadcaster drops every event. Used when no hub is wired, e.g. tests.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(Event) {}

var _ Broadcaster = (*Hub)(nil)
var _ Broadcaster = NopBroadcaster{}
