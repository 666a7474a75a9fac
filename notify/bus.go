// Package notify provides the in-process event bus for reminder and
// task lifecycle events. Fired reminders are persisted to the store's
// notification log by the scheduler; the bus carries the same events to
// live consumers such as the SSE feed.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of event on the bus.
type EventType string

const (
	TypeTaskCreated   EventType = "task.created"   // a task was added
	TypeTaskCompleted EventType = "task.completed" // a task was marked completed
	TypeReminderFired EventType = "reminder.fired" // a deadline reminder was emitted
)

// Event is a single bus event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    int64     `json:"task_id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler processes a published event. Handlers must not block.
type Handler func(e Event)

type handlerEntry struct {
	id      int
	handler Handler
}

// Bus is a thread-safe in-process event bus with a bounded history.
type Bus struct {
	mu       sync.RWMutex
	handlers []handlerEntry
	nextID   int
	history  []Event
	maxHist  int
}

// NewBus creates a Bus with a 1000-event history cap.
func NewBus() *Bus {
	return &Bus{maxHist: 1000}
}

// Publish delivers an event to all subscribers. A missing ID or
// Timestamp is filled in.
func (b *Bus) Publish(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	// Collect handlers to invoke outside the lock
	targets := make([]Handler, len(b.handlers))
	for i, entry := range b.handlers {
		targets[i] = entry.handler
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(e)
	}
	return e
}

// Subscribe registers a handler for all published events.
// The returned function unsubscribes the handler.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		filtered := b.handlers[:0]
		for _, e := range b.handlers {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		b.handlers = filtered
	}
}

// History returns the most recent limit events in chronological order.
// limit <= 0 returns everything retained.
func (b *Bus) History(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}
