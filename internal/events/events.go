// Package events is the in-process bus carrying session and popup events
// from the sampler to its observers.
package events

import (
	"sync"
	"time"
)

// Type names an event kind.
type Type string

const (
	SessionStart Type = "session-start"
	SessionEnd   Type = "session-end"
	PopupRequest Type = "popup-request"
)

// Event is a single notification. Fields not relevant to Type are zero.
type Event struct {
	Type      Type      `json:"type"`
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`

	// session-start / session-end
	Focused   bool   `json:"focused"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// popup-request
	AppIdentifier string `json:"app_identifier,omitempty"`
	Category      string `json:"category,omitempty"`
	PID           int    `json:"pid,omitempty"` // set only for browsers
}

// Handler receives published events.
type Handler func(Event)

// Publisher is implemented by Bus.
type Publisher interface {
	Publish(Event)
}

// Bus delivers events synchronously in subscription order. Handlers must
// not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	all      []Handler
	recent   []Event
	limit    int
}

// NewBus creates a bus that remembers the last limit events.
func NewBus(limit int) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		limit:    limit,
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers e to the matching handlers.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if b.limit > 0 {
		b.recent = append(b.recent, e)
		if len(b.recent) > b.limit {
			b.recent = b.recent[len(b.recent)-b.limit:]
		}
	}
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

// Recent returns the remembered events, oldest first.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Event(nil), b.recent...)
}
