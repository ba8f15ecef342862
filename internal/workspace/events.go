package workspace

import (
	"sync"
	"time"
)

// EventType represents the type of workspace lifecycle event.
type EventType string

const (
	EventLayoutChange     EventType = "layout-change"
	EventActiveLeafChange EventType = "active-leaf-change"
	EventLeafDetached     EventType = "leaf-detached"
)

// Event represents a workspace event with the leaf it concerns, when one
// applies. Layout changes carry no leaf.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Leaf      Leaf
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus manages event publication and subscription. It provides a
// decoupled way for the host to notify the plugin of lifecycle changes, and
// every subscription is individually reversible so a plugin reload leaks no
// handlers into the host.
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType]map[int]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type and returns an
// unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[int]EventHandler)
	}
	id := eb.nextID
	eb.nextID++
	eb.handlers[eventType][id] = handler

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// Publish sends an event to all handlers registered for its type.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type]))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	// Handlers run outside the lock: they are allowed to publish further
	// events or unsubscribe themselves.
	for _, h := range handlers {
		h(event)
	}
}

// PublishSimple is a convenience method for leaf-less events.
func (eb *EventBus) PublishSimple(eventType EventType) {
	eb.Publish(Event{Type: eventType})
}

// PublishLeaf publishes an event concerning a specific leaf.
func (eb *EventBus) PublishLeaf(eventType EventType, leaf Leaf) {
	eb.Publish(Event{Type: eventType, Leaf: leaf})
}
