// Package sink contains the delivery targets fed by the fan-out worker.
package sink

import (
	"context"
	"sync"

	"team-chat/domain/event"
	"team-chat/errors"
)

// ConnSink bridges the dispatcher to one connection's write pump.
// Consume is called by fan-out; the transport handler drains Events and
// writes envelopes to the wire.
//
// The buffered channel preserves publish order per connection, which is
// what turns the dispatcher's per-room FIFO into per-subscriber FIFO.
type ConnSink struct {
	Events chan event.DomainEvent

	mu     sync.Mutex
	closed bool
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume hands the event to the connection without blocking fan-out.
// A full buffer means the connection cannot keep up: the event is
// refused so the dispatcher can log it, other subscribers are unaffected.
//
// The dispatcher may still hold a subscriber snapshot taken just before
// the connection dropped, so Consume must stay safe after Close.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSinkBackpressure
	}
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkBackpressure
	}
}

// Close releases the write pump. Call only after the sink has been
// removed from the registry.
func (s *ConnSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Events)
}
