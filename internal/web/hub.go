package web

import (
	"log/slog"
	"sync"
)

// ReloadMessage is broadcast to live-reload subscribers after a catalogue reload.
type ReloadMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
	Courses int    `json:"courses"`
}

// Hub fans reload messages out to websocket subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan ReloadMessage]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan ReloadMessage]struct{})}
}

// Subscribe registers a subscriber. The returned func unregisters it and
// must be called once.
func (h *Hub) Subscribe() (<-chan ReloadMessage, func()) {
	ch := make(chan ReloadMessage, 4)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// Broadcast sends msg to every subscriber. A subscriber whose buffer is
// full misses the message.
func (h *Hub) Broadcast(msg ReloadMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			slog.Warn("reload subscriber is slow, dropping message", "version", msg.Version)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
