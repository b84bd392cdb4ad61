// Package bus fans out change notifications to registered observers.
package bus

import (
	"log/slog"
	"sync"
	"time"
)

// Kind identifies what changed.
type Kind string

const (
	StateChanged   Kind = "state_changed"
	HistoryChanged Kind = "history_changed"
	OptionsChanged Kind = "options_changed"
)

// Event is delivered to every subscriber after a successful persisted
// mutation.
type Event struct {
	Kind Kind
	At   time.Time
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events synchronously, in subscription order. A panicking
// subscriber is recovered and logged so it cannot break the publishing
// command or the remaining subscribers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
	logger *slog.Logger
}

type subscription struct {
	id      int
	handler Handler
}

// New creates a Bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler and returns a function that removes it
// again. Short-lived subscribers (streaming connections) must call it or
// they accumulate for the life of the process; calling it more than once
// is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every subscriber with the event. Fire-and-forget from
// the caller's perspective: subscriber failures are swallowed.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s.handler, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event subscriber panicked", "kind", e.Kind, "panic", r)
		}
	}()
	h(e)
}
