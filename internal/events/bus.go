package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber receives events from the bus. SubscribedEventTypes narrows
// delivery to the named event types; an empty slice means everything.
type Subscriber interface {
	SubscribedEventTypes() []string
	Receive(Event)
}

// DefaultQueueSize is the publish queue capacity used by NewBus when the
// caller passes 0.
const DefaultQueueSize = 1024

// Bus is the in-process event bus. Events are queued by Publish and
// drained by a single dispatcher goroutine, which preserves global
// publish order across all subscribers.
//
// All public methods are thread-safe.
type Bus struct {
	logger Logger

	// sendMu serialises queue sends against the close in Stop.
	sendMu sync.RWMutex
	queue  chan Event

	mu   sync.RWMutex
	subs []Subscriber

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}

	dropped atomic.Uint64
}

// NewBus creates an event bus with the given queue capacity (0 means
// DefaultQueueSize). Call Start before publishing.
func NewBus(logger Logger, queueSize int) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine. Starting twice is a no-op.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go b.dispatch()
}

// Stop closes the bus: further publishes are dropped, the queue is
// drained, and the dispatcher exits. Stop returns once dispatch has
// finished or ctx expires.
func (b *Bus) Stop(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.sendMu.Lock()
	close(b.queue)
	b.sendMu.Unlock()
	if !b.started.Load() {
		return nil
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish enqueues an event for dispatch. It never blocks: when the
// queue is full or the bus is stopped the event is dropped and counted.
func (b *Bus) Publish(ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed.Load() {
		b.dropped.Add(1)
		b.logger.Warn("event dropped, bus stopped", "type", ev.Type(), "topic", ev.Topic())
		return ErrBusClosed
	}
	select {
	case b.queue <- ev:
		return nil
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("event dropped, queue full", "type", ev.Type(), "topic", ev.Topic(), "dropped_total", n)
		return ErrQueueFull
	}
}

// Subscribe registers a subscriber. Subscribing the same subscriber
// twice is a no-op.
func (b *Bus) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.subs {
		if existing == s {
			return
		}
	}
	b.subs = append(b.subs, s)
}

// Unsubscribe removes a subscriber. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.subs {
		if existing == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Dropped returns the number of events dropped since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.queue {
		b.mu.RLock()
		subs := make([]Subscriber, len(b.subs))
		copy(subs, b.subs)
		b.mu.RUnlock()

		for _, s := range subs {
			if !wantsType(s, ev.Type()) {
				continue
			}
			b.deliver(s, ev)
		}
	}
}

// deliver invokes one subscriber, recovering panics so a broken receiver
// cannot stall the dispatcher.
func (b *Bus) deliver(s Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panic recovered", "type", ev.Type(), "topic", ev.Topic(), "panic", r)
		}
	}()
	s.Receive(ev)
}

func wantsType(s Subscriber, eventType string) bool {
	want := s.SubscribedEventTypes()
	if len(want) == 0 {
		return true
	}
	for _, t := range want {
		if t == eventType {
			return true
		}
	}
	return false
}
