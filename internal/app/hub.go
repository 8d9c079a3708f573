package app

import (
	"sync"

	"github.com/ayusman/mudra/internal/tracking"
)

// Hub fans snapshots out to subscribers. Slow subscribers miss snapshots
// instead of stalling the tracking loop.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan tracking.Snapshot]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan tracking.Snapshot]struct{})}
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan tracking.Snapshot, func()) {
	ch := make(chan tracking.Snapshot, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers s to every subscriber with room for it.
func (h *Hub) Publish(s tracking.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
