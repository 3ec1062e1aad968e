// Package sse fans delivery events out to admin API stream subscribers.
package sse

import "sync"

// Feed subscribes to every event regardless of the usernames it concerns.
const Feed = "*"

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a channel for events concerning username (or Feed for
// all of them). The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(username string) (chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.subs[username]; !ok {
		h.subs[username] = make(map[chan []byte]struct{})
	}
	h.subs[username][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if subscribers, ok := h.subs[username]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(h.subs, username)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
}

// Broadcast delivers payload to every subscriber of the named users and to
// the wildcard feed. Slow subscribers are skipped, never blocked on.
func (h *Hub) Broadcast(usernames []string, payload []byte) {
	unique := map[string]struct{}{Feed: {}}
	for _, username := range usernames {
		if username != "" {
			unique[username] = struct{}{}
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for username := range unique {
		for ch := range h.subs[username] {
			select {
			case ch <- payload:
			default:
			}
		}
	}
}
