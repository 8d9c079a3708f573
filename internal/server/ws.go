package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/tracking"
)

const (
	writeWait = 2 * time.Second
	// clientBuffer is how many snapshots a slow client may lag before
	// snapshots are skipped for it.
	clientBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSource publishes tracking snapshots. *app.App satisfies it.
type SnapshotSource interface {
	Subscribe(buffer int) (<-chan tracking.Snapshot, func())
}

// HandsHandler streams tracking snapshots to WebSocket clients as JSON, one
// message per frame.
type HandsHandler struct {
	source  SnapshotSource
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewHandsHandler creates a HandsHandler.
func NewHandsHandler(source SnapshotSource) *HandsHandler {
	return &HandsHandler{
		source:  source,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Clients returns the number of connected clients.
func (h *HandsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *HandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	snapshots, unsubscribe := h.source.Subscribe(clientBuffer)
	defer unsubscribe()

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("websocket write error: %v", err)
				return
			}
		}
	}
}
