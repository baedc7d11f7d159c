package aigate

import (
	"sync"
	"time"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventRequestStarted     EventType = "request_started"
	EventRequestCompleted   EventType = "request_completed"
	EventRequestFailed      EventType = "request_failed"
	EventRequestCanceled    EventType = "request_canceled"
	EventStreamStarted      EventType = "stream_started"
	EventStreamChunk        EventType = "stream_chunk"
	EventStreamCompleted    EventType = "stream_completed"
	EventStreamFailed       EventType = "stream_failed"
	EventProviderRegistered EventType = "provider_registered"
)

// Event carries the details of one lifecycle notification.
type Event struct {
	Type      EventType
	RequestID string
	Provider  string
	Chunk     string
	Err       error
	At        time.Time
}

// eventBus fans events out to subscribers synchronously, in subscription
// order. Callbacks must not block.
type eventBus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func newEventBus() *eventBus {
	return &eventBus{}
}

func (b *eventBus) subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *eventBus) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
