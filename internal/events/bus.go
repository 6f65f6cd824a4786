package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Bus manages event distribution to subscribers with filtering support.
//
// Thread safety:
//   - All methods are safe for concurrent use.
//   - Publish never blocks on slow subscribers: if a subscriber's buffer is
//     full the event is dropped for that subscriber only, and the drop is
//     reported through the error handler.
type Bus interface {
	// Publish sends an event to all matching subscribers.
	// Returns an error only if the bus is closed.
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription with optional filtering.
	// bufferSize 0 uses the bus default. The cleanup function must be called
	// to release the subscription.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// ErrorHandler is called when the bus drops an event for a slow subscriber
// or hits an internal error. Typical implementations log at warn level.
type ErrorHandler func(err error, context map[string]any)

func noopErrorHandler(error, map[string]any) {}

// InMemoryBus implements Bus with buffered channels and non-blocking sends.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	options     *busOptions
	closed      bool
}

type subscription struct {
	id       string
	ch       chan Event
	filter   Filter
	ctx      context.Context
	cancel   context.CancelFunc
	created  time.Time
	received atomic.Int64
	dropped  atomic.Int64
}

type busOptions struct {
	defaultBufferSize int
	errorHandler      ErrorHandler
}

// Option is a functional option for configuring InMemoryBus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the buffer size used when Subscribe is called
// with bufferSize 0. Default: 100 events.
func WithDefaultBufferSize(size int) Option {
	return func(opts *busOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithErrorHandler sets the handler invoked for dropped events.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(opts *busOptions) {
		if handler != nil {
			opts.errorHandler = handler
		}
	}
}

// NewBus creates a new InMemoryBus with the given options.
func NewBus(opts ...Option) *InMemoryBus {
	options := &busOptions{
		defaultBufferSize: 100,
		errorHandler:      noopErrorHandler,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &InMemoryBus{
		subscribers: make(map[string]*subscription),
		options:     options,
	}
}

// Publish sends an event to all matching subscribers without blocking.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			// Subscriber context cancelled; cleanup happens on unsubscribe.
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			sub.received.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Buffer full: drop for this subscriber only.
			sub.dropped.Add(1)
			b.options.errorHandler(
				fmt.Errorf("dropped event for slow subscriber"),
				map[string]any{
					"subscriber_id": sub.id,
					"event_type":    event.Type,
					"tenant_id":     event.TenantID,
					"agent_id":      event.AgentID,
				},
			)
		}
	}

	return nil
}

// Subscribe creates a new filtered subscription. The returned cleanup
// function must be called to unsubscribe.
func (b *InMemoryBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.options.defaultBufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:      nextSubscriberID(),
		ch:      make(chan Event, bufferSize),
		filter:  filter,
		ctx:     subCtx,
		cancel:  cancel,
		created: time.Now(),
	}
	b.subscribers[sub.id] = sub

	return sub.ch, func() { b.unsubscribe(sub.id) }
}

func (b *InMemoryBus) unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[subscriberID]
	if !exists {
		return
	}

	sub.cancel()
	close(sub.ch)
	delete(b.subscribers, subscriberID)
}

// Close shuts down the bus and closes all subscriber channels.
// Close is idempotent.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}

	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *InMemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var subscriberCounter atomic.Uint64

func nextSubscriberID() string {
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), subscriberCounter.Add(1))
}
