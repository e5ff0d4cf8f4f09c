// Package channel carries notification events from the webhook handlers to
// the notify dispatcher over a buffered in-memory channel.
package channel

import (
	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

// MetricsSink records event bus metrics. All methods must be non-blocking
// and fire-and-forget.
type MetricsSink interface {
	NotifyBufferCapacitySet(capacity int)
	NotifyBufferSizeUpdate(size int)
	NotifyDropped()
}

type EventBus struct {
	ch      chan domain.NotifyEvent
	metrics MetricsSink // optional, nil = disabled
}

type Option func(*EventBus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch: make(chan domain.NotifyEvent, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.NotifyBufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues an event without blocking. A full buffer drops the event and
// returns false: notifications are best-effort and must never delay the
// webhook response.
func (b *EventBus) Emit(event domain.NotifyEvent) bool {
	select {
	case b.ch <- event:
		if b.metrics != nil {
			b.metrics.NotifyBufferSizeUpdate(len(b.ch))
		}
		return true
	default:
		if b.metrics != nil {
			b.metrics.NotifyDropped()
		}
		return false
	}
}

func (b *EventBus) Channel() <-chan domain.NotifyEvent {
	return b.ch
}
