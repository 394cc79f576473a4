// Package bus is the in-process publish/subscribe channel between actors.
//
// Delivery is synchronous: Publish returns after every handler registered
// for the topic has run, in registration order. Handlers that need to delay
// their reaction schedule it themselves.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/healsync/healsync/internal/util"
)

// ErrInvalidEvent is returned by Publish for a missing or invalid payload.
var ErrInvalidEvent = errors.New("invalid event")

// Handler processes one event.
type Handler func(ctx context.Context, e Event)

// Observer receives bus activity for metrics.
type Observer interface {
	Published(topic Topic)
	HandlerPanicked(topic Topic)
}

type nopObserver struct{}

func (nopObserver) Published(Topic)       {}
func (nopObserver) HandlerPanicked(Topic) {}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus routes events to subscribers by topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID uint64

	observer Observer
	logger   *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithObserver reports publishes and handler panics.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:     make(map[Topic][]subscription),
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bus")
	return b
}

// Subscribe registers handler for topic. The returned func removes this
// registration and may be called more than once.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			// Copy so a dispatch holding the old slice is unaffected.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = next
			}
			return
		}
	}
}

// Publish validates the event payload and delivers it to every subscriber
// of its topic. A zero ID or Timestamp is filled in.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidEvent)
	}
	if err := e.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, e.Payload.Topic(), err)
	}
	if e.ID == "" {
		e.ID = util.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	topic := e.Topic()

	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	b.observer.Published(topic)
	b.logger.Debug("publishing", "topic", topic, "source", e.Source, "subscribers", len(subs))

	for _, s := range subs {
		b.dispatch(ctx, topic, s.handler, e)
	}
	return nil
}

func (b *Bus) dispatch(ctx context.Context, topic Topic, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.observer.HandlerPanicked(topic)
			b.logger.Error("handler panicked",
				"topic", topic,
				"event_id", e.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ctx, e)
}

// Topics returns every topic with at least one subscriber, sorted.
func (b *Bus) Topics() []Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Topic, 0, len(b.subs))
	for t := range b.subs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
