package sse

import (
	"slices"
	"sync"
)

// Event is one server-sent event.
type Event struct {
	Topic string
	Event string
	Data  interface{}
}

// Hub fans events out to subscribers of a topic. The latest event of each
// name is retained per topic and replayed to new subscribers, so a shell
// that connects late still renders the current state.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	retained    map[string]map[string]Event
	bufferSize  int
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		retained:    make(map[string]map[string]Event),
		bufferSize:  16,
	}
}

// Subscribe registers a subscriber for a topic and returns its channel and cleanup function.
// Retained events are replayed except those named in skipRetained.
func (h *Hub) Subscribe(topic string, skipRetained ...string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufferSize)

	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}

	for name, ev := range h.retained[topic] {
		if slices.Contains(skipRetained, name) {
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[topic], ch)
			close(ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of its topic and retains it
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.retained[event.Topic] == nil {
		h.retained[event.Topic] = make(map[string]Event)
	}
	h.retained[event.Topic][event.Event] = event

	for ch := range h.subscribers[event.Topic] {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop rather than block the publisher
		}
	}
}

// Forget drops retained events of a topic (for example after sign-out)
func (h *Hub) Forget(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.retained, topic)
}

// SubscriberCount returns the number of active subscribers for a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[topic])
}
