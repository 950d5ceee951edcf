package events

import "sync"

// Handler receives a single event. Handlers should be non-blocking; a slow
// handler delays delivery to later subscribers but never blocks the loop's
// next cycle.
type Handler func(Event)

// Bus broadcasts loop events to subscribers. Many loops publish into one bus;
// subscribers are keyed by ID so they can be removed again.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]Handler)}
}

// Subscribe registers a handler under the given subscriber ID, replacing any
// previous handler with the same ID.
func (b *Bus) Subscribe(id string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish sends the event to all current subscribers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.subs {
		handler(event)
	}
}
