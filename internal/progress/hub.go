// Package progress fans out batch progress events to live subscribers.
package progress

import "sync"

const subscriberBuffer = 64

// Event reports how far a run's batch has progressed.
type Event struct {
	RunDate   string `json:"run_date"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Done      bool   `json:"done"`
}

// Hub delivers published events to every subscriber. A nil *Hub discards
// everything.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	last *Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. The most recent event, if any, is
// delivered first. Call the returned function to unsubscribe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.last != nil {
		ch <- *h.last
	}
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

// Subscribers reports how many listeners are registered.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish sends e to all subscribers without blocking. Subscribers whose
// buffer is full miss the event.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &e
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
