package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Change event types mirrored from the remote store's change feed.
const (
	TypeCreated   = "created"
	TypeDeleted   = "deleted"
	TypeRefreshed = "refreshed" // snapshot reconciled; New/Old are empty
)

// Event represents a change to one record of a collection. New and Old are
// JSON-encoded snapshots of the record after and before the change; either
// may be empty depending on the event type.
type Event struct {
	Type       string          `json:"event_type"`
	Collection string          `json:"collection"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent builds an event, JSON-encoding the record snapshots. Marshal
// failures leave the corresponding payload empty; subscribers re-fetch on
// notification anyway, so the payload is advisory.
func NewEvent(eventType, collection string, newRec, oldRec interface{}) Event {
	ev := Event{Type: eventType, Collection: collection, OccurredAt: time.Now()}
	if newRec != nil {
		if data, err := json.Marshal(newRec); err == nil {
			ev.New = data
		}
	}
	if oldRec != nil {
		if data, err := json.Marshal(oldRec); err == nil {
			ev.Old = data
		}
	}
	return ev
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for change events, keyed by collection.
type Bus struct {
	subscribers map[string]map[int64]Handler
	nextID      int64
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[int64]Handler)}
}

// Subscribe registers a handler for a collection's change events and
// returns a function that removes it again.
func (b *Bus) Subscribe(collection string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[collection] == nil {
		b.subscribers[collection] = make(map[int64]Handler)
	}
	b.nextID++
	id := b.nextID
	b.subscribers[collection][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[collection], id)
	}
}

// Publish notifies subscribers of the event's collection.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Collection]))
	for _, h := range b.subscribers[event.Collection] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
