// Package syncengine replays the durable mutation queue against the server
// and reconciles provisional ids with server-issued ones.
package syncengine

import (
	"sync"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/infrastructure/logging"
)

// Event is a sync lifecycle notification. Events are delivered synchronously
// on the goroutine that produced them, in subscription order.
type Event interface {
	eventName() string
}

// SyncStarted fires when a drain pass begins.
type SyncStarted struct {
	Pending int
}

func (SyncStarted) eventName() string { return "sync.started" }

// SyncCompleted fires when a drain pass ends, whatever the per-operation
// outcomes were.
type SyncCompleted struct {
	Synced       int
	Failed       int
	DeadLettered int
}

func (SyncCompleted) eventName() string { return "sync.completed" }

// SyncFailed fires when a drain pass aborts before finishing, for example
// when the queue itself cannot be read.
type SyncFailed struct {
	Err error
}

func (SyncFailed) eventName() string { return "sync.failed" }

// EntityReplaced fires when a provisionally-created entity is reconciled:
// the provisional id is superseded by the server-issued one. Subscribers
// patch their in-memory references.
type EntityReplaced struct {
	Resource entity.Resource
	OldID    string
	NewID    string
}

func (EntityReplaced) eventName() string { return "entity.replaced" }

// Bus delivers events to subscribers. Delivery is synchronous and in
// subscription order; a panicking subscriber is recovered and logged so one
// bad listener cannot wedge a drain.
type Bus struct {
	mu     sync.RWMutex
	subs   []func(Event)
	logger *logging.Logger
}

// NewBus creates an event bus.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a listener for all events.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		b.deliver(fn, ev)
	}
}

func (b *Bus) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "event", ev.eventName(), "panic", r)
		}
	}()
	fn(ev)
}
